package tokenadmin

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
	"github.com/spacenexus/spacetoken-server/pkg/ledger"
	"github.com/spacenexus/spacetoken-server/pkg/metrics"
	"github.com/spacenexus/spacetoken-server/pkg/pointer"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
	"github.com/spacenexus/spacetoken-server/pkg/solana/spacetoken"
)

const (
	metricsStructName = "tokenadmin.admin"

	mintedAmountMetricName = "Custom/SpaceToken/MintedAmount"
)

// TokenRecord is the decoded state of a token record account.
type TokenRecord struct {
	Address   ed25519.PublicKey
	Name      string
	Symbol    string
	Uri       string
	Decimals  uint8
	Authority ed25519.PublicKey
	Supply    uint64
}

type CreateArgs struct {
	// Record address. Derived from the mint when not provided.
	Address ed25519.PublicKey
	// Funds the record account. Defaults to the authority.
	Payer ed25519.PublicKey

	// SPL mint. When empty, a mint is allocated by the ledger and written
	// back here.
	Mint      ed25519.PublicKey
	Name      string
	Symbol    string
	Uri       string
	Decimals  uint8
	Authority ed25519.PublicKey
}

type MintArgs struct {
	Token       ed25519.PublicKey
	Mint        ed25519.PublicKey
	Destination ed25519.PublicKey
	Authority   ed25519.PublicKey
	Amount      uint64
}

// UpdateMetadataArgs overwrites each non-nil field.
type UpdateMetadataArgs struct {
	Token     ed25519.PublicKey
	Authority ed25519.PublicKey

	Name   *string
	Symbol *string
	Uri    *string
}

type TransferAuthorityArgs struct {
	Token        ed25519.PublicKey
	Authority    ed25519.PublicKey
	NewAuthority ed25519.PublicKey
}

// Admin manages token records on top of a runtime and a token ledger. Every
// mutation runs as a single runtime invocation: the signer set comes from the
// context, and a failure at any step, including the ledger call, leaves no
// partial state behind.
type Admin struct {
	log    *logrus.Entry
	conf   *conf
	rt     runtime.Runtime
	ledger ledger.Ledger
	events event.Store
}

func New(rt runtime.Runtime, ledger ledger.Ledger, events event.Store, configProvider ConfigProvider) *Admin {
	return &Admin{
		log:    logrus.StandardLogger().WithField("type", "tokenadmin/admin"),
		conf:   configProvider(),
		rt:     rt,
		ledger: ledger,
		events: events,
	}
}

// Create allocates a new record with zero supply and initializes its mint on
// the ledger, with the authority as both mint and freeze authority.
func (a *Admin) Create(ctx context.Context, args *CreateArgs) (record *TokenRecord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Create", expectedErrors...)
	defer tracer.Finish(&err)

	if len(args.Authority) != ed25519.PublicKeySize {
		return nil, ErrInvalidArgs
	}

	state := &spacetoken.SpaceTokenAccount{
		Name:      args.Name,
		Symbol:    args.Symbol,
		Uri:       args.Uri,
		Decimals:  args.Decimals,
		Authority: args.Authority,
		Supply:    0,
	}
	data, err := state.Marshal()
	if err != nil {
		return nil, err
	}

	switch len(args.Mint) {
	case ed25519.PublicKeySize:
	case 0:
		allocator, ok := a.ledger.(ledger.MintAllocator)
		if !ok {
			return nil, ErrInvalidArgs
		}
		if err := runtime.RequireSigner(ctx, args.Authority); err != nil {
			return nil, err
		}
		if args.Mint, err = allocator.AllocateMint(ctx); err != nil {
			return nil, err
		}
		ctx = runtime.WithSigners(ctx, args.Mint)
	default:
		return nil, ErrInvalidArgs
	}

	address := args.Address
	if len(address) == 0 {
		address, _, err = spacetoken.GetSpaceTokenAddress(&spacetoken.GetSpaceTokenAddressArgs{
			Mint: args.Mint,
		})
		if err != nil {
			return nil, err
		}
	}

	payer := args.Payer
	if len(payer) == 0 {
		payer = args.Authority
	}

	log := a.log.WithFields(logrus.Fields{
		"method":    "Create",
		"token":     base58.Encode(address),
		"mint":      base58.Encode(args.Mint),
		"authority": base58.Encode(args.Authority),
	})

	err = a.rt.Execute(ctx, func(ctx context.Context) error {
		if err := runtime.RequireSigner(ctx, args.Authority); err != nil {
			return err
		}

		_, err := a.rt.CreateAccount(ctx, &runtime.CreateAccountArgs{
			Payer:   payer,
			Address: address,
			Owner:   spacetoken.PROGRAM_ID,
			Space:   spacetoken.SpaceTokenAccountSize,
		})
		if err != nil {
			return err
		}

		if err := a.rt.PutAccountData(ctx, spacetoken.PROGRAM_ID, address, data); err != nil {
			return err
		}

		return a.ledger.InitializeMint(ctx, &ledger.InitializeMintArgs{
			Payer:           payer,
			Mint:            args.Mint,
			Decimals:        args.Decimals,
			MintAuthority:   args.Authority,
			FreezeAuthority: args.Authority,
		})
	})
	if err != nil {
		log.WithError(err).Info("failed to create token")
		return nil, err
	}

	log.Debug("token created")

	record = toTokenRecord(address, state)
	a.onSuccess(ctx, &event.Record{
		EventType: event.TokenInitialized,
		Token:     base58.Encode(address),
		Mint:      base58.Encode(args.Mint),
		Authority: base58.Encode(args.Authority),
		Name:      pointer.String(args.Name),
		Symbol:    pointer.String(args.Symbol),
		Uri:       pointer.String(args.Uri),
	})
	return record, nil
}

// Mint adds amount to the record's supply and mints the same amount into the
// destination token account.
func (a *Admin) Mint(ctx context.Context, args *MintArgs) (record *TokenRecord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Mint", expectedErrors...)
	defer tracer.Finish(&err)

	log := a.log.WithFields(logrus.Fields{
		"method":      "Mint",
		"token":       base58.Encode(args.Token),
		"mint":        base58.Encode(args.Mint),
		"destination": base58.Encode(args.Destination),
		"authority":   base58.Encode(args.Authority),
		"amount":      args.Amount,
	})

	var state *spacetoken.SpaceTokenAccount
	err = a.rt.Execute(ctx, func(ctx context.Context) error {
		state, err = a.getState(ctx, args.Token)
		if err != nil {
			return err
		}

		if err := runtime.RequireSigner(ctx, args.Authority); err != nil {
			return err
		}
		if a.conf.enforceMintAuthority.Get(ctx) && !bytes.Equal(state.Authority, args.Authority) {
			return ErrUnauthorized
		}

		if state.Supply > math.MaxUint64-args.Amount {
			return ErrSupplyOverflow
		}
		state.Supply += args.Amount

		if err := a.putState(ctx, args.Token, state); err != nil {
			return err
		}

		return a.ledger.MintTo(ctx, &ledger.MintToArgs{
			Mint:        args.Mint,
			Destination: args.Destination,
			Authority:   args.Authority,
			Amount:      args.Amount,
		})
	})
	if err != nil {
		log.WithError(err).Info("failed to mint tokens")
		return nil, err
	}

	log.Debug("tokens minted")
	metrics.RecordCount(ctx, mintedAmountMetricName, args.Amount)

	record = toTokenRecord(args.Token, state)
	a.onSuccess(ctx, &event.Record{
		EventType:   event.TokensMinted,
		Token:       base58.Encode(args.Token),
		Mint:        base58.Encode(args.Mint),
		Authority:   base58.Encode(args.Authority),
		Destination: pointer.String(base58.Encode(args.Destination)),
		Amount:      pointer.Uint64(args.Amount),
	})
	return record, nil
}

// UpdateMetadata overwrites the supplied metadata fields. Absent fields are
// left unchanged.
func (a *Admin) UpdateMetadata(ctx context.Context, args *UpdateMetadataArgs) (record *TokenRecord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "UpdateMetadata", expectedErrors...)
	defer tracer.Finish(&err)

	log := a.log.WithFields(logrus.Fields{
		"method":    "UpdateMetadata",
		"token":     base58.Encode(args.Token),
		"authority": base58.Encode(args.Authority),
	})

	var state *spacetoken.SpaceTokenAccount
	err = a.rt.Execute(ctx, func(ctx context.Context) error {
		state, err = a.getAuthorizedState(ctx, args.Token, args.Authority)
		if err != nil {
			return err
		}

		if args.Name != nil {
			state.Name = *args.Name
		}
		if args.Symbol != nil {
			state.Symbol = *args.Symbol
		}
		if args.Uri != nil {
			state.Uri = *args.Uri
		}

		return a.putState(ctx, args.Token, state)
	})
	if err != nil {
		log.WithError(err).Info("failed to update metadata")
		return nil, err
	}

	log.Debug("metadata updated")

	record = toTokenRecord(args.Token, state)
	a.onSuccess(ctx, &event.Record{
		EventType: event.MetadataUpdated,
		Token:     base58.Encode(args.Token),
		Authority: base58.Encode(args.Authority),
		Name:      pointer.StringCopy(args.Name),
		Symbol:    pointer.StringCopy(args.Symbol),
		Uri:       pointer.StringCopy(args.Uri),
	})
	return record, nil
}

// TransferAuthority replaces the record's authority. The new authority is not
// validated beyond being a well formed key.
func (a *Admin) TransferAuthority(ctx context.Context, args *TransferAuthorityArgs) (record *TokenRecord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "TransferAuthority", expectedErrors...)
	defer tracer.Finish(&err)

	if len(args.NewAuthority) != ed25519.PublicKeySize {
		return nil, ErrInvalidArgs
	}

	log := a.log.WithFields(logrus.Fields{
		"method":        "TransferAuthority",
		"token":         base58.Encode(args.Token),
		"authority":     base58.Encode(args.Authority),
		"new_authority": base58.Encode(args.NewAuthority),
	})

	var state *spacetoken.SpaceTokenAccount
	err = a.rt.Execute(ctx, func(ctx context.Context) error {
		state, err = a.getAuthorizedState(ctx, args.Token, args.Authority)
		if err != nil {
			return err
		}

		state.Authority = args.NewAuthority

		return a.putState(ctx, args.Token, state)
	})
	if err != nil {
		log.WithError(err).Info("failed to transfer authority")
		return nil, err
	}

	log.Debug("authority transferred")

	record = toTokenRecord(args.Token, state)
	a.onSuccess(ctx, &event.Record{
		EventType:    event.AuthorityTransferred,
		Token:        base58.Encode(args.Token),
		Authority:    base58.Encode(args.Authority),
		NewAuthority: pointer.String(base58.Encode(args.NewAuthority)),
	})
	return record, nil
}

// Get loads a token record.
func (a *Admin) Get(ctx context.Context, token ed25519.PublicKey) (_ *TokenRecord, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Get", expectedErrors...)
	defer tracer.Finish(&err)

	var state *spacetoken.SpaceTokenAccount
	err = a.rt.Execute(ctx, func(ctx context.Context) (err error) {
		state, err = a.getState(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toTokenRecord(token, state), nil
}

// GetHistory returns the operation history of a token.
func (a *Admin) GetHistory(ctx context.Context, token ed25519.PublicKey, opts ...query.Option) (_ []*event.Record, err error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetHistory", expectedErrors...)
	defer tracer.Finish(&err)

	records, err := a.events.GetAllByToken(ctx, base58.Encode(token), opts...)
	switch err {
	case nil:
		return records, nil
	case event.ErrEventNotFound:
		return nil, nil
	default:
		return nil, err
	}
}

func (a *Admin) getState(ctx context.Context, token ed25519.PublicKey) (*spacetoken.SpaceTokenAccount, error) {
	account, err := a.rt.GetAccount(ctx, token)
	if err != nil {
		return nil, err
	}

	if !account.IsOwnedBy(spacetoken.PROGRAM_ID) {
		return nil, ErrInvalidRecord
	}

	var state spacetoken.SpaceTokenAccount
	if err := state.Unmarshal(account.Data); err != nil {
		return nil, ErrInvalidRecord
	}
	return &state, nil
}

// getAuthorizedState loads the record and checks that authority both signed
// the invocation and is the record's stored authority.
func (a *Admin) getAuthorizedState(ctx context.Context, token, authority ed25519.PublicKey) (*spacetoken.SpaceTokenAccount, error) {
	state, err := a.getState(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := runtime.RequireSigner(ctx, authority); err != nil {
		return nil, err
	}
	if !bytes.Equal(state.Authority, authority) {
		return nil, ErrUnauthorized
	}
	return state, nil
}

func (a *Admin) putState(ctx context.Context, token ed25519.PublicKey, state *spacetoken.SpaceTokenAccount) error {
	data, err := state.Marshal()
	if err != nil {
		return err
	}
	return a.rt.PutAccountData(ctx, spacetoken.PROGRAM_ID, token, data)
}

// onSuccess records the operation in the token's history. Failures here never
// fail the operation, which has already committed.
func (a *Admin) onSuccess(ctx context.Context, record *event.Record) {
	metrics.RecordEvent(ctx, "SpaceTokenOperation", map[string]interface{}{
		"type":  record.EventType.String(),
		"token": record.Token,
	})

	if a.conf.disableEventHistory.Get(ctx) {
		return
	}

	record.EventId = event.NewEventId()
	if err := a.events.Save(ctx, record); err != nil {
		a.log.WithError(err).WithFields(logrus.Fields{
			"method": "onSuccess",
			"type":   record.EventType.String(),
			"token":  record.Token,
		}).Warn("failure saving event record")
	}
}

func toTokenRecord(address ed25519.PublicKey, state *spacetoken.SpaceTokenAccount) *TokenRecord {
	return &TokenRecord{
		Address:   address,
		Name:      state.Name,
		Symbol:    state.Symbol,
		Uri:       state.Uri,
		Decimals:  state.Decimals,
		Authority: state.Authority,
		Supply:    state.Supply,
	}
}
