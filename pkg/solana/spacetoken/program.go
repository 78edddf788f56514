package spacetoken

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"

	"github.com/mr-tron/base58"

	"github.com/spacenexus/spacetoken-server/pkg/solana"
)

var (
	ErrInvalidAccountData    = errors.New("unexpected account data")
	ErrAccountDataTooLarge   = errors.New("account data exceeds allocated space")
	ErrInvalidStringEncoding = errors.New("invalid string encoding")
)

var (
	PROGRAM_ADDRESS = mustBase58Decode("SpaceNexusToken1111111111111111111111111111")
	PROGRAM_ID      = ed25519.PublicKey(PROGRAM_ADDRESS)
)

// Anchor assigns custom program errors starting at 6000.
const (
	ErrorUnauthorized solana.CustomError = 6000 + iota
)

func accountDiscriminator(name string) []byte {
	h := sha256.Sum256([]byte("account:" + name))
	return h[:8]
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	if len(decoded) != ed25519.PublicKeySize {
		panic("invalid program address length")
	}
	return decoded
}
