package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"

	pgutil "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	q "github.com/spacenexus/spacetoken-server/pkg/database/query"
)

const (
	tableName = "spacetoken__core_keyvault"
	columns   = "id, public_key, sealed_private_key, role, state, created_at"
)

// keyModel is a vault row. The private key column only ever holds a sealed
// value.
type keyModel struct {
	Id               int64     `db:"id"`
	PublicKey        string    `db:"public_key"`
	SealedPrivateKey string    `db:"sealed_private_key"`
	Role             uint8     `db:"role"`
	State            uint8     `db:"state"`
	CreatedAt        time.Time `db:"created_at"`
}

func toModel(sealed *vault.Record) *keyModel {
	if sealed.CreatedAt.IsZero() {
		sealed.CreatedAt = time.Now()
	}

	return &keyModel{
		PublicKey:        sealed.PublicKey,
		SealedPrivateKey: sealed.PrivateKey,
		Role:             uint8(sealed.Role),
		State:            uint8(sealed.State),
		CreatedAt:        sealed.CreatedAt.UTC(),
	}
}

// toSealedRecord is the inverse of toModel. The private key stays sealed.
func (m *keyModel) toSealedRecord() *vault.Record {
	return &vault.Record{
		Id:         uint64(m.Id),
		PublicKey:  m.PublicKey,
		PrivateKey: m.SealedPrivateKey,
		Role:       vault.Role(m.Role),
		State:      vault.State(m.State),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

// dbSave inserts the row, or updates only the state when the public key is
// already present. m is refreshed with the stored row.
func (m *keyModel) dbSave(ctx context.Context, db *sqlx.DB) error {
	query := `INSERT INTO ` + tableName + `
		(public_key, sealed_private_key, role, state, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (public_key)
		DO UPDATE SET state = EXCLUDED.state
		RETURNING ` + columns

	err := db.QueryRowxContext(ctx, query,
		m.PublicKey,
		m.SealedPrivateKey,
		m.Role,
		m.State,
		m.CreatedAt,
	).StructScan(m)
	return pgutil.CheckNoRows(err, vault.ErrInvalidKey)
}

func dbCount(ctx context.Context, db *sqlx.DB) (uint64, error) {
	var count uint64
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+tableName)
	return count, err
}

func dbGet(ctx context.Context, db *sqlx.DB, pubkey string) (*keyModel, error) {
	var m keyModel
	query := `SELECT ` + columns + ` FROM ` + tableName + ` WHERE public_key = $1`
	if err := db.GetContext(ctx, &m, query, pubkey); err != nil {
		return nil, pgutil.CheckNoRows(err, vault.ErrKeyNotFound)
	}
	return &m, nil
}

func dbGetAllByRole(ctx context.Context, db *sqlx.DB, role vault.Role, req *q.QueryOptions) ([]*keyModel, error) {
	query := `SELECT ` + columns + ` FROM ` + tableName + ` WHERE (role = $1)`
	query, args := q.PaginateQuery(query, []interface{}{uint8(role)}, req.Cursor, req.Limit, req.SortBy)

	var res []*keyModel
	if err := db.SelectContext(ctx, &res, query, args...); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, vault.ErrKeyNotFound
	}
	return res, nil
}
