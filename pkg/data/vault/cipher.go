package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Cipher seals private keys at rest with AES-GCM. The public key is bound as
// additional data, so a ciphertext cannot be moved between records. Sealed
// values are base58(nonce || ciphertext).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher accepts a base58 encoded AES-128, AES-192 or AES-256 key.
func NewCipher(secret string) (*Cipher, error) {
	key, err := base58.Decode(secret)
	if err != nil {
		return nil, errors.Wrap(err, "invalid vault secret")
	}
	return newCipher(key)
}

// NewEphemeralCipher uses a random key that lives as long as the process.
func NewEphemeralCipher() (*Cipher, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "error generating vault secret")
	}
	return newCipher(key)
}

func newCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "invalid vault secret")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Seal(plaintext, publicKey string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "error generating nonce")
	}
	return base58.Encode(c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(publicKey))), nil
}

func (c *Cipher) Open(ciphertext, publicKey string) (string, error) {
	data, err := base58.Decode(ciphertext)
	if err != nil || len(data) < c.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, []byte(publicKey))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// SealRecord returns a copy of record with its private key sealed.
func (c *Cipher) SealRecord(record *Record) (*Record, error) {
	sealed := record.Clone()
	var err error
	if sealed.PrivateKey, err = c.Seal(record.PrivateKey, record.PublicKey); err != nil {
		return nil, err
	}
	return sealed, nil
}

// OpenRecord returns a copy of record with its private key in plaintext.
func (c *Cipher) OpenRecord(record *Record) (*Record, error) {
	opened := record.Clone()
	var err error
	if opened.PrivateKey, err = c.Open(record.PrivateKey, record.PublicKey); err != nil {
		return nil, err
	}
	return opened, nil
}
