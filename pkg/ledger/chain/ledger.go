package chain

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/metrics"
	"github.com/spacenexus/spacetoken-server/pkg/retry"
	"github.com/spacenexus/spacetoken-server/pkg/retry/backoff"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/solana"
	"github.com/spacenexus/spacetoken-server/pkg/solana/memo"
	"github.com/spacenexus/spacetoken-server/pkg/solana/system"
	"github.com/spacenexus/spacetoken-server/pkg/solana/token"
)

const (
	metricsStructName = "ledger.chain"

	MemoPrefix = "spacetoken:"
)

var (
	ErrTransactionFailed = errors.New("transaction failed")
)

// Ledger drives the SPL token program on a Solana cluster. Transactions are
// paid for by a fee payer and signed with custodial keys resolved from the
// vault. A custodial key is only used when the invocation is signed by it.
type Ledger struct {
	log        *logrus.Entry
	sc         solana.Client
	tc         *token.Client
	keys       vault.Store
	feePayer   ed25519.PublicKey
	commitment solana.Commitment
}

func New(sc solana.Client, keys vault.Store, feePayer ed25519.PublicKey, commitment solana.Commitment) *Ledger {
	return &Ledger{
		log:        logrus.StandardLogger().WithField("type", "ledger/chain"),
		sc:         sc,
		tc:         token.NewClient(sc),
		keys:       keys,
		feePayer:   feePayer,
		commitment: commitment,
	}
}

// InitializeMint implements ledger.Ledger.InitializeMint
func (l *Ledger) InitializeMint(ctx context.Context, args *ledger.InitializeMintArgs) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "InitializeMint")
	defer tracer.Finish(&err)

	if err := args.Validate(); err != nil {
		return err
	}
	if err := l.requireSigners(ctx, args.Payer, args.Mint); err != nil {
		return err
	}

	_, err = l.tc.GetMint(args.Mint, l.commitment)
	switch err {
	case nil:
		return ledger.ErrMintAlreadyInitialized
	case token.ErrAccountNotFound:
	default:
		return errors.Wrap(err, "error checking mint")
	}

	lamports, err := l.sc.GetMinimumBalanceForRentExemption(token.MintSize)
	if err != nil {
		return errors.Wrap(err, "error getting rent exempt balance")
	}

	_, err = l.submit(
		ctx,
		"initialize_mint",
		[]ed25519.PublicKey{args.Payer, args.Mint},
		system.CreateAccount(args.Payer, args.Mint, token.ProgramKey, lamports, token.MintSize),
		token.InitializeMint(args.Mint, args.Decimals, args.MintAuthority, args.FreezeAuthority),
	)
	return err
}

// MintTo implements ledger.Ledger.MintTo
func (l *Ledger) MintTo(ctx context.Context, args *ledger.MintToArgs) (err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "MintTo")
	defer tracer.Finish(&err)

	if err := args.Validate(); err != nil {
		return err
	}
	if err := l.requireSigners(ctx, args.Authority); err != nil {
		return err
	}

	_, err = l.submit(
		ctx,
		"mint_to",
		[]ed25519.PublicKey{args.Authority},
		token.MintTo(args.Mint, args.Destination, args.Authority, args.Amount),
	)
	return err
}

// CreateTokenAccount implements ledger.Ledger.CreateTokenAccount
func (l *Ledger) CreateTokenAccount(ctx context.Context, args *ledger.CreateTokenAccountArgs) (address ed25519.PublicKey, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "CreateTokenAccount")
	defer tracer.Finish(&err)

	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := l.requireSigners(ctx, args.Payer); err != nil {
		return nil, err
	}

	instruction, address, err := token.CreateAssociatedTokenAccount(args.Payer, args.Owner, args.Mint)
	if err != nil {
		return nil, errors.Wrap(err, "error building create instruction")
	}

	_, err = l.sc.GetAccountInfo(address, l.commitment)
	switch err {
	case nil:
		return nil, runtime.ErrAccountAlreadyInUse
	case solana.ErrNoAccountInfo:
	default:
		return nil, errors.Wrap(err, "error checking token account")
	}

	if _, err := l.submit(ctx, "create_token_account", []ed25519.PublicKey{args.Payer}, instruction); err != nil {
		return nil, err
	}
	return address, nil
}

// submit signs and submits a transaction, then waits for it to reach the
// configured commitment. The action is recorded in a trailing memo.
func (l *Ledger) submit(ctx context.Context, action string, signers []ed25519.PublicKey, instructions ...solana.Instruction) (solana.Signature, error) {
	var sig solana.Signature

	if err := l.requireSigners(ctx, signers...); err != nil {
		return sig, err
	}

	instructions = append(instructions, memo.Tagged(MemoPrefix, action))

	keys, err := l.getSigningKeys(ctx, append([]ed25519.PublicKey{l.feePayer}, signers...))
	if err != nil {
		return sig, err
	}

	var blockhash solana.Blockhash
	_, err = retry.Retry(
		func() error {
			blockhash, err = l.sc.GetLatestBlockhash()
			return err
		},
		retry.Context(ctx),
		retry.Limit(3),
		retry.Backoff(backoff.Constant(250*time.Millisecond), time.Second),
	)
	if err != nil {
		return sig, errors.Wrap(err, "error getting recent blockhash")
	}

	txn := solana.NewTransaction(l.feePayer, instructions...)
	txn.SetBlockhash(blockhash)
	if err := txn.Sign(keys...); err != nil {
		return sig, errors.Wrap(err, "error signing transaction")
	}

	log := l.log.WithFields(logrus.Fields{
		"method":    "submit",
		"signature": base58.Encode(txn.Signature()),
	})

	sig, err = l.sc.SubmitTransaction(txn, l.commitment)
	if err != nil {
		log.WithError(err).Info("transaction rejected")
		return sig, toLedgerError(err)
	}

	status, err := l.sc.GetSignatureStatus(sig, l.commitment)
	if err != nil {
		log.WithError(err).Warn("failure waiting for transaction confirmation")
		return sig, errors.Wrap(err, "error waiting for confirmation")
	}
	if status != nil && status.ErrorResult != nil {
		log.WithError(status.ErrorResult).Info("transaction failed")
		return sig, toLedgerError(*status.ErrorResult)
	}

	log.Info("transaction confirmed")
	return sig, nil
}

// requireSigners checks that every key other than the fee payer signed the
// invocation.
func (l *Ledger) requireSigners(ctx context.Context, keys ...ed25519.PublicKey) error {
	for _, key := range keys {
		if bytes.Equal(key, l.feePayer) {
			continue
		}
		if err := runtime.RequireSigner(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// AllocateMint implements ledger.MintAllocator.AllocateMint. The mint key is
// generated and held in the vault so the ledger can sign for its creation.
func (l *Ledger) AllocateMint(ctx context.Context) (ed25519.PublicKey, error) {
	record, err := vault.NewKey(vault.RoleCustodial)
	if err != nil {
		return nil, err
	}
	if err := l.keys.Save(ctx, record); err != nil {
		return nil, errors.Wrap(err, "error saving mint key")
	}

	mint, err := record.Address()
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"method": "AllocateMint",
		"mint":   base58.Encode(mint),
	}).Info("allocated custodial mint key")
	return mint, nil
}

func (l *Ledger) getSigningKeys(ctx context.Context, pubkeys []ed25519.PublicKey) ([]ed25519.PrivateKey, error) {
	var res []ed25519.PrivateKey
	for _, pubkey := range pubkeys {
		var seen bool
		for _, key := range res {
			if bytes.Equal(key.Public().(ed25519.PublicKey), pubkey) {
				seen = true
				break
			}
		}
		if seen {
			continue
		}

		key, err := vault.GetSigningKey(ctx, l.keys, pubkey)
		if err != nil {
			return nil, errors.Wrapf(err, "error loading signing key %s", base58.Encode(pubkey))
		}
		res = append(res, key)
	}
	return res, nil
}

// toLedgerError maps token program errors onto ledger errors. Anything else is
// returned unchanged.
func toLedgerError(err error) error {
	var instructionErr *solana.InstructionError
	switch typed := err.(type) {
	case solana.InstructionError:
		instructionErr = &typed
	case solana.TransactionError:
		instructionErr = typed.InstructionError()
	case *solana.TransactionError:
		instructionErr = typed.InstructionError()
	}
	if instructionErr == nil || instructionErr.CustomError() == nil {
		return err
	}

	switch *instructionErr.CustomError() {
	case token.ErrorAlreadyInUse:
		return ledger.ErrMintAlreadyInitialized
	case token.ErrorOwnerMismatch:
		return ledger.ErrOwnerMismatch
	case token.ErrorMintMismatch:
		return ledger.ErrMintMismatch
	case token.ErrorFixedSupply:
		return ledger.ErrFixedSupply
	case token.ErrorOverflow:
		return ledger.ErrOverflow
	case token.ErrorUninitializedState:
		return ledger.ErrTokenAccountNotFound
	default:
		return err
	}
}
