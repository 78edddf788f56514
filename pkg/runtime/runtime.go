package runtime

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"time"
)

var (
	ErrAccountAlreadyInUse         = errors.New("account already in use")
	ErrAccountNotFound             = errors.New("account not found")
	ErrAccountDataTooLarge         = errors.New("account data exceeds allocated space")
	ErrExternalAccountDataModified = errors.New("account data modified by a program that does not own it")
	ErrMissingRequiredSignature    = errors.New("missing required signature")
	ErrInvalidAccountSpace         = errors.New("invalid account space")
	ErrNotInInvocation             = errors.New("not executing within an invocation")
)

// MaxAccountSpace mirrors the largest account a program may allocate.
const MaxAccountSpace = 10 * 1024 * 1024

// Account is a unit of program owned storage.
type Account struct {
	Address  ed25519.PublicKey
	Owner    ed25519.PublicKey
	Payer    ed25519.PublicKey
	Space    uint64
	Lamports uint64
	Data     []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateAccountArgs struct {
	Payer   ed25519.PublicKey
	Address ed25519.PublicKey
	Owner   ed25519.PublicKey
	Space   uint64
}

// Runtime is the host platform a program executes against. It provides
// account allocation with rent payment and transactional account storage.
// The signer set of an invocation is carried on the context (see WithSigners).
type Runtime interface {
	// Execute runs fn as a single invocation. Invocations are atomic and
	// serially ordered with respect to each other. Any account mutation made
	// within fn is discarded when fn returns an error. Calling Execute from
	// within an invocation joins the existing one.
	Execute(ctx context.Context, fn func(ctx context.Context) error) error

	// CreateAccount allocates a zeroed account of the requested space owned
	// by the owner program. The payer must be a signer and funds the rent
	// exempt minimum. ErrAccountAlreadyInUse is returned if the address is
	// taken.
	CreateAccount(ctx context.Context, args *CreateAccountArgs) (*Account, error)

	// GetAccount loads an account. ErrAccountNotFound is returned if it
	// doesn't exist.
	GetAccount(ctx context.Context, address ed25519.PublicKey) (*Account, error)

	// PutAccountData overwrites the data of an account owned by program. Data
	// larger than the account's space is rejected with ErrAccountDataTooLarge.
	PutAccountData(ctx context.Context, program, address ed25519.PublicKey, data []byte) error

	// GetProgramAccounts returns every account owned by the program.
	GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*Account, error)
}

func (a *Account) Clone() *Account {
	cloned := &Account{
		Address:   make(ed25519.PublicKey, len(a.Address)),
		Owner:     make(ed25519.PublicKey, len(a.Owner)),
		Payer:     make(ed25519.PublicKey, len(a.Payer)),
		Space:     a.Space,
		Lamports:  a.Lamports,
		Data:      make([]byte, len(a.Data)),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}

	copy(cloned.Address, a.Address)
	copy(cloned.Owner, a.Owner)
	copy(cloned.Payer, a.Payer)
	copy(cloned.Data, a.Data)

	return cloned
}

func (a *Account) IsOwnedBy(program ed25519.PublicKey) bool {
	return bytes.Equal(a.Owner, program)
}

func (args *CreateAccountArgs) Validate() error {
	if len(args.Payer) != ed25519.PublicKeySize {
		return errors.New("invalid payer")
	}
	if len(args.Address) != ed25519.PublicKeySize {
		return errors.New("invalid address")
	}
	if len(args.Owner) != ed25519.PublicKeySize {
		return errors.New("invalid owner")
	}
	if args.Space == 0 || args.Space > MaxAccountSpace {
		return ErrInvalidAccountSpace
	}
	return nil
}

// CheckAccountData validates a write against an existing account.
func CheckAccountData(account *Account, program ed25519.PublicKey, data []byte) error {
	if !account.IsOwnedBy(program) {
		return ErrExternalAccountDataModified
	}
	if uint64(len(data)) > account.Space {
		return ErrAccountDataTooLarge
	}
	return nil
}

// PadAccountData returns data zero padded to the account's space.
func PadAccountData(data []byte, space uint64) []byte {
	padded := make([]byte, space)
	copy(padded, data)
	return padded
}
