package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"

	pgutil "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
)

type rt struct {
	db *sqlx.DB
}

// New returns a postgres backed runtime. Each invocation is a database
// transaction, and accounts are row locked on first read so invocations
// touching the same accounts are serially ordered.
func New(db *sql.DB) runtime.Runtime {
	return &rt{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Execute implements runtime.Runtime.Execute
func (r *rt) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if pgutil.IsInTx(ctx) {
		return fn(ctx)
	}
	return pgutil.ExecuteTxWithinCtx(ctx, r.db, sql.LevelReadCommitted, fn)
}

// CreateAccount implements runtime.Runtime.CreateAccount
func (r *rt) CreateAccount(ctx context.Context, args *runtime.CreateAccountArgs) (*runtime.Account, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := runtime.RequireSigner(ctx, args.Payer); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &runtime.Account{
		Address:   args.Address,
		Owner:     args.Owner,
		Payer:     args.Payer,
		Space:     args.Space,
		Lamports:  runtime.MinimumBalanceForRentExemption(args.Space),
		Data:      make([]byte, args.Space),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.Execute(ctx, func(ctx context.Context) error {
		return toModel(account).dbCreate(ctx, r.db)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetAccount implements runtime.Runtime.GetAccount
func (r *rt) GetAccount(ctx context.Context, address ed25519.PublicKey) (*runtime.Account, error) {
	m, err := dbGetForUpdate(ctx, r.db, base58.Encode(address))
	if err != nil {
		return nil, err
	}
	return fromModel(m)
}

// PutAccountData implements runtime.Runtime.PutAccountData
func (r *rt) PutAccountData(ctx context.Context, program, address ed25519.PublicKey, data []byte) error {
	return r.Execute(ctx, func(ctx context.Context) error {
		account, err := r.GetAccount(ctx, address)
		if err != nil {
			return err
		}

		if err := runtime.CheckAccountData(account, program, data); err != nil {
			return err
		}

		return dbPutData(
			ctx,
			r.db,
			base58.Encode(address),
			runtime.PadAccountData(data, account.Space),
			time.Now().UTC(),
		)
	})
}

// GetProgramAccounts implements runtime.Runtime.GetProgramAccounts
func (r *rt) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey) ([]*runtime.Account, error) {
	models, err := dbGetAllByOwner(ctx, r.db, base58.Encode(program))
	if err != nil {
		return nil, err
	}

	res := make([]*runtime.Account, len(models))
	for i, m := range models {
		res[i], err = fromModel(m)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
