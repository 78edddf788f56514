package ledger

import (
	"context"
	"crypto/ed25519"
	"errors"
)

var (
	ErrMintAlreadyInitialized = errors.New("mint already initialized")
	ErrMintNotFound           = errors.New("mint not found")
	ErrTokenAccountNotFound   = errors.New("token account not found")
	ErrMintMismatch           = errors.New("token account mint mismatch")
	ErrOwnerMismatch          = errors.New("mint authority mismatch")
	ErrFixedSupply            = errors.New("mint has a fixed supply")
	ErrOverflow               = errors.New("operation overflowed")
	ErrInvalidArgs            = errors.New("invalid ledger arguments")
)

type InitializeMintArgs struct {
	// Funds the mint account. Must be a signer of the invocation.
	Payer ed25519.PublicKey

	Mint            ed25519.PublicKey
	Decimals        uint8
	MintAuthority   ed25519.PublicKey
	FreezeAuthority ed25519.PublicKey
}

type MintToArgs struct {
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Authority   ed25519.PublicKey
	Amount      uint64
}

type CreateTokenAccountArgs struct {
	Payer ed25519.PublicKey
	Owner ed25519.PublicKey
	Mint  ed25519.PublicKey
}

// Ledger is the token program that owns balance and supply accounting.
// Failures are returned unchanged to the caller.
type Ledger interface {
	// InitializeMint creates a new mint with the provided decimals and
	// authorities.
	InitializeMint(ctx context.Context, args *InitializeMintArgs) error

	// MintTo increases the mint's supply and credits the destination token
	// account by amount. The authority must be the mint's mint authority and
	// must have signed.
	MintTo(ctx context.Context, args *MintToArgs) error

	// CreateTokenAccount creates the associated token account for the owner
	// and mint, returning its address.
	CreateTokenAccount(ctx context.Context, args *CreateTokenAccountArgs) (ed25519.PublicKey, error)
}

// MintAllocator is optionally implemented by ledgers that can generate a new
// mint on the caller's behalf. The ledger holds the mint key, so the allocated
// mint counts as a signer of the invocation that initializes it.
type MintAllocator interface {
	AllocateMint(ctx context.Context) (ed25519.PublicKey, error)
}

type Holder struct {
	Account ed25519.PublicKey
	Owner   ed25519.PublicKey
	Amount  uint64
}

// HolderIndex is optionally implemented by ledgers that can enumerate every
// token account of a mint.
type HolderIndex interface {
	GetHolders(ctx context.Context, mint ed25519.PublicKey) ([]*Holder, error)
}

func (args *InitializeMintArgs) Validate() error {
	if len(args.Payer) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.Mint) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.MintAuthority) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.FreezeAuthority) != 0 && len(args.FreezeAuthority) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	return nil
}

func (args *MintToArgs) Validate() error {
	if len(args.Mint) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.Destination) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.Authority) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	return nil
}

func (args *CreateTokenAccountArgs) Validate() error {
	if len(args.Payer) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.Owner) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	if len(args.Mint) != ed25519.PublicKeySize {
		return ErrInvalidArgs
	}
	return nil
}
