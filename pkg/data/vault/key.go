package vault

import (
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrKeyNotFound = errors.New("no records could be found")
	ErrInvalidKey  = errors.New("invalid key")
	ErrKeyRevoked  = errors.New("key has been revoked")
	ErrRoleChanged = errors.New("key is already held under another role")
)

// Role is what a custodial key is used for.
type Role uint8

const (
	// RoleCustodial keys sign for token authorities and holders.
	RoleCustodial Role = iota
	// RoleFeePayer keys pay for ledger transactions.
	RoleFeePayer
)

func (r Role) String() string {
	switch r {
	case RoleCustodial:
		return "custodial"
	case RoleFeePayer:
		return "fee_payer"
	default:
		return "unknown"
	}
}

type State uint8

const (
	StateUnknown State = iota
	StateAvailable
	StateRevoked
)

// Record is a custodial keypair the server signs ledger transactions with.
// PrivateKey is plaintext in memory and sealed at rest.
type Record struct {
	Id uint64

	PublicKey  string
	PrivateKey string

	Role  Role
	State State

	CreatedAt time.Time
}

// NewKey generates a fresh available keypair.
func NewKey(role Role) (*Record, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, err
	}
	return FromPrivateKey(priv, role)
}

// FromPrivateKey wraps an existing keypair, such as a configured fee payer.
func FromPrivateKey(priv ed25519.PrivateKey, role Role) (*Record, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKey
	}

	return &Record{
		PublicKey:  base58.Encode(priv.Public().(ed25519.PublicKey)),
		PrivateKey: base58.Encode(priv),
		Role:       role,
		State:      StateAvailable,
		CreatedAt:  time.Now(),
	}, nil
}

func (r *Record) IsRevoked() bool {
	return r.State == StateRevoked
}

// Address decodes the public key.
func (r *Record) Address() (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(r.PublicKey)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, ErrInvalidKey
	}
	return decoded, nil
}

// SigningKey decodes the private key, checking it belongs to PublicKey.
func (r *Record) SigningKey() (ed25519.PrivateKey, error) {
	decoded, err := base58.Decode(r.PrivateKey)
	if err != nil || len(decoded) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKey
	}

	priv := ed25519.PrivateKey(decoded)
	if base58.Encode(priv.Public().(ed25519.PublicKey)) != r.PublicKey {
		return nil, errors.Wrap(ErrInvalidKey, "private key does not match public key")
	}
	return priv, nil
}

func (r *Record) Clone() *Record {
	cloned := *r
	return &cloned
}

func (r *Record) Validate() error {
	switch {
	case len(r.PublicKey) == 0:
		return errors.New("public key is required")
	case len(r.PrivateKey) == 0:
		return errors.New("private key is required")
	case r.State == StateUnknown:
		return errors.New("state is required")
	case r.Role > RoleFeePayer:
		return errors.Errorf("unknown role %d", r.Role)
	}
	return nil
}
