package postgres

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	pgutil "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	"github.com/spacenexus/spacetoken-server/pkg/runtime"
)

const (
	accountTableName = "spacetoken__core_account"
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Address  string `db:"address"`
	Owner    string `db:"owner"`
	Payer    string `db:"payer"`
	Space    int64  `db:"space"`
	Lamports int64  `db:"lamports"`
	Data     []byte `db:"data"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toModel(account *runtime.Account) *model {
	return &model{
		Address:   base58.Encode(account.Address),
		Owner:     base58.Encode(account.Owner),
		Payer:     base58.Encode(account.Payer),
		Space:     int64(account.Space),
		Lamports:  int64(account.Lamports),
		Data:      account.Data,
		CreatedAt: account.CreatedAt,
		UpdatedAt: account.UpdatedAt,
	}
}

func fromModel(m *model) (*runtime.Account, error) {
	address, err := decodeKey(m.Address)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address")
	}
	owner, err := decodeKey(m.Owner)
	if err != nil {
		return nil, errors.Wrap(err, "invalid owner")
	}
	payer, err := decodeKey(m.Payer)
	if err != nil {
		return nil, errors.Wrap(err, "invalid payer")
	}

	return &runtime.Account{
		Address:   address,
		Owner:     owner,
		Payer:     payer,
		Space:     uint64(m.Space),
		Lamports:  uint64(m.Lamports),
		Data:      m.Data,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}, nil
}

func (m *model) dbCreate(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + accountTableName + `
			(address, owner, payer, space, lamports, data, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (address) DO NOTHING
		`

		result, err := tx.ExecContext(
			ctx,
			query,
			m.Address,
			m.Owner,
			m.Payer,
			m.Space,
			m.Lamports,
			m.Data,
			m.CreatedAt,
			m.UpdatedAt,
		)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return runtime.ErrAccountAlreadyInUse
		}
		return nil
	})
}

// dbGetForUpdate row locks the account until the surrounding transaction
// completes.
func dbGetForUpdate(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `SELECT id, address, owner, payer, space, lamports, data, created_at, updated_at
			FROM ` + accountTableName + `
			WHERE address = $1
			FOR UPDATE
		`
		return tx.GetContext(ctx, res, query, address)
	})
	if err != nil {
		return nil, pgutil.CheckNoRows(err, runtime.ErrAccountNotFound)
	}
	return res, nil
}

func dbPutData(ctx context.Context, db *sqlx.DB, address string, data []byte, updatedAt time.Time) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + accountTableName + `
			SET data = $2, updated_at = $3
			WHERE address = $1
		`

		result, err := tx.ExecContext(ctx, query, address, data, updatedAt)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return runtime.ErrAccountNotFound
		}
		return nil
	})
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string) ([]*model, error) {
	var res []*model
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `SELECT id, address, owner, payer, space, lamports, data, created_at, updated_at
			FROM ` + accountTableName + `
			WHERE owner = $1
			ORDER BY address ASC
		`
		return tx.SelectContext(ctx, &res, query, owner)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func decodeKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length: %d", len(decoded))
	}
	return decoded, nil
}
