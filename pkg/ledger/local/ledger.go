package local

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/metrics"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/solana/token"
)

const (
	metricsStructName = "ledger.local"
)

var (
	ErrInvalidAccountData = errors.New("invalid token program account data")
)

// Ledger keeps SPL token mint and account state as runtime accounts owned by
// the token program, so ledger writes commit and roll back with the rest of
// the invocation.
type Ledger struct {
	log *logrus.Entry
	rt  runtime.Runtime
}

func New(rt runtime.Runtime) *Ledger {
	return &Ledger{
		log: logrus.StandardLogger().WithField("type", "ledger/local"),
		rt:  rt,
	}
}

// InitializeMint implements ledger.Ledger.InitializeMint
func (l *Ledger) InitializeMint(ctx context.Context, args *ledger.InitializeMintArgs) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "InitializeMint")
	defer tracer.Finish(&err)

	if err := args.Validate(); err != nil {
		return err
	}

	return l.rt.Execute(ctx, func(ctx context.Context) error {
		account, err := l.rt.GetAccount(ctx, args.Mint)
		if err == runtime.ErrAccountNotFound {
			account, err = l.rt.CreateAccount(ctx, &runtime.CreateAccountArgs{
				Payer:   args.Payer,
				Address: args.Mint,
				Owner:   token.ProgramKey,
				Space:   token.MintSize,
			})
		}
		if err != nil {
			return err
		}

		mint, err := unmarshalMint(account)
		if err != nil {
			return err
		}
		if mint.IsInitialized {
			return ledger.ErrMintAlreadyInitialized
		}

		initialized := &token.Mint{
			MintAuthority:   args.MintAuthority,
			Decimals:        args.Decimals,
			IsInitialized:   true,
			FreezeAuthority: args.FreezeAuthority,
		}
		return l.rt.PutAccountData(ctx, token.ProgramKey, args.Mint, initialized.Marshal())
	})
}

// AllocateMint implements ledger.MintAllocator.AllocateMint. Local mints are
// never signed for, so only the address is kept.
func (l *Ledger) AllocateMint(ctx context.Context) (ed25519.PublicKey, error) {
	mint, _, err := ed25519.GenerateKey(nil)
	return mint, err
}

// MintTo implements ledger.Ledger.MintTo
func (l *Ledger) MintTo(ctx context.Context, args *ledger.MintToArgs) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MintTo")
	defer tracer.Finish(&err)

	if err := args.Validate(); err != nil {
		return err
	}

	return l.rt.Execute(ctx, func(ctx context.Context) error {
		mint, err := l.getMint(ctx, args.Mint)
		if err != nil {
			return err
		}

		if len(mint.MintAuthority) == 0 {
			return ledger.ErrFixedSupply
		}
		if !bytes.Equal(mint.MintAuthority, args.Authority) {
			return ledger.ErrOwnerMismatch
		}
		if err := runtime.RequireSigner(ctx, args.Authority); err != nil {
			return err
		}

		destination, err := l.getTokenAccount(ctx, args.Destination)
		if err != nil {
			return err
		}
		if !bytes.Equal(destination.Mint, args.Mint) {
			return ledger.ErrMintMismatch
		}

		if mint.Supply > math.MaxUint64-args.Amount {
			return ledger.ErrOverflow
		}
		if destination.Amount > math.MaxUint64-args.Amount {
			return ledger.ErrOverflow
		}
		mint.Supply += args.Amount
		destination.Amount += args.Amount

		if err := l.rt.PutAccountData(ctx, token.ProgramKey, args.Mint, mint.Marshal()); err != nil {
			return err
		}
		return l.rt.PutAccountData(ctx, token.ProgramKey, args.Destination, destination.Marshal())
	})
}

// CreateTokenAccount implements ledger.Ledger.CreateTokenAccount
func (l *Ledger) CreateTokenAccount(ctx context.Context, args *ledger.CreateTokenAccountArgs) (address ed25519.PublicKey, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateTokenAccount")
	defer tracer.Finish(&err)

	if err := args.Validate(); err != nil {
		return nil, err
	}

	address, err = token.GetAssociatedAccount(args.Owner, args.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "error deriving associated token account")
	}

	err = l.rt.Execute(ctx, func(ctx context.Context) error {
		if _, err := l.getMint(ctx, args.Mint); err != nil {
			return err
		}

		_, err := l.rt.CreateAccount(ctx, &runtime.CreateAccountArgs{
			Payer:   args.Payer,
			Address: address,
			Owner:   token.ProgramKey,
			Space:   token.AccountSize,
		})
		if err != nil {
			return err
		}

		account := &token.Account{
			Mint:  args.Mint,
			Owner: args.Owner,
			State: token.AccountStateInitialized,
		}
		return l.rt.PutAccountData(ctx, token.ProgramKey, address, account.Marshal())
	})
	if err != nil {
		return nil, err
	}
	return address, nil
}

// GetHolders implements ledger.HolderIndex.GetHolders
func (l *Ledger) GetHolders(ctx context.Context, mint ed25519.PublicKey) (_ []*ledger.Holder, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetHolders")
	defer tracer.Finish(&err)

	accounts, err := l.rt.GetProgramAccounts(ctx, token.ProgramKey)
	if err != nil {
		return nil, err
	}

	var res []*ledger.Holder
	for _, account := range accounts {
		if account.Space != token.AccountSize {
			continue
		}

		var tokenAccount token.Account
		if !tokenAccount.Unmarshal(account.Data) {
			l.log.WithField("account", base58.Encode(account.Address)).Warn("skipping malformed token account")
			continue
		}
		if tokenAccount.State == token.AccountStateUninitialized || !bytes.Equal(tokenAccount.Mint, mint) {
			continue
		}

		res = append(res, &ledger.Holder{
			Account: account.Address,
			Owner:   tokenAccount.Owner,
			Amount:  tokenAccount.Amount,
		})
	}
	return res, nil
}

// GetMint returns the current state of an initialized mint.
func (l *Ledger) GetMint(ctx context.Context, address ed25519.PublicKey) (*token.Mint, error) {
	return l.getMint(ctx, address)
}

// GetTokenAccount returns the current state of a token account.
func (l *Ledger) GetTokenAccount(ctx context.Context, address ed25519.PublicKey) (*token.Account, error) {
	return l.getTokenAccount(ctx, address)
}

func (l *Ledger) getMint(ctx context.Context, address ed25519.PublicKey) (*token.Mint, error) {
	account, err := l.rt.GetAccount(ctx, address)
	if err == runtime.ErrAccountNotFound {
		return nil, ledger.ErrMintNotFound
	} else if err != nil {
		return nil, err
	}

	mint, err := unmarshalMint(account)
	if err != nil {
		return nil, err
	}
	if !mint.IsInitialized {
		return nil, ledger.ErrMintNotFound
	}
	return mint, nil
}

func (l *Ledger) getTokenAccount(ctx context.Context, address ed25519.PublicKey) (*token.Account, error) {
	account, err := l.rt.GetAccount(ctx, address)
	if err == runtime.ErrAccountNotFound {
		return nil, ledger.ErrTokenAccountNotFound
	} else if err != nil {
		return nil, err
	}

	if !account.IsOwnedBy(token.ProgramKey) {
		return nil, ErrInvalidAccountData
	}

	var tokenAccount token.Account
	if !tokenAccount.Unmarshal(account.Data) {
		return nil, ErrInvalidAccountData
	}
	if tokenAccount.State == token.AccountStateUninitialized {
		return nil, ledger.ErrTokenAccountNotFound
	}
	return &tokenAccount, nil
}

func unmarshalMint(account *runtime.Account) (*token.Mint, error) {
	if !account.IsOwnedBy(token.ProgramKey) {
		return nil, ErrInvalidAccountData
	}

	var mint token.Mint
	if !mint.Unmarshal(account.Data) {
		return nil, ErrInvalidAccountData
	}
	return &mint, nil
}
