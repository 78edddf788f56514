package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/spacenexus/spacetoken-server/pkg/data/vault"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

type store struct {
	db     *sqlx.DB
	cipher *vault.Cipher
}

// New returns a vault backed by postgres. Private keys are sealed with cipher
// before they reach the database.
func New(db *sql.DB, cipher *vault.Cipher) vault.Store {
	return &store{
		db:     sqlx.NewDb(db, "pgx"),
		cipher: cipher,
	}
}

func (s *store) Count(ctx context.Context) (uint64, error) {
	return dbCount(ctx, s.db)
}

func (s *store) Save(ctx context.Context, record *vault.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	sealed, err := s.cipher.SealRecord(record)
	if err != nil {
		return err
	}

	m := toModel(sealed)
	if err := m.dbSave(ctx, s.db); err != nil {
		return err
	}

	stored := m.toSealedRecord()
	record.Id = stored.Id
	record.Role = stored.Role
	record.State = stored.State
	record.CreatedAt = stored.CreatedAt
	return nil
}

func (s *store) Get(ctx context.Context, pubkey string) (*vault.Record, error) {
	m, err := dbGet(ctx, s.db, pubkey)
	if err != nil {
		return nil, err
	}
	return s.cipher.OpenRecord(m.toSealedRecord())
}

func (s *store) GetAllByRole(ctx context.Context, role vault.Role, opts ...query.Option) ([]*vault.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	models, err := dbGetAllByRole(ctx, s.db, role, req)
	if err != nil {
		return nil, err
	}

	res := make([]*vault.Record, len(models))
	for i, m := range models {
		if res[i], err = s.cipher.OpenRecord(m.toSealedRecord()); err != nil {
			return nil, err
		}
	}
	return res, nil
}
