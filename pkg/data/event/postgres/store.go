package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres backed event.Store
func New(db *sql.DB) event.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Save implements event.Store.Save
func (s *store) Save(ctx context.Context, record *event.Record) error {
	model, err := toModel(record)
	if err != nil {
		return err
	}

	if err := model.dbSave(ctx, s.db); err != nil {
		return err
	}

	*record = *fromModel(model)
	return nil
}

// Get implements event.Store.Get
func (s *store) Get(ctx context.Context, id string) (*event.Record, error) {
	model, err := dbGet(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAllByToken implements event.Store.GetAllByToken
func (s *store) GetAllByToken(ctx context.Context, token string, opts ...query.Option) ([]*event.Record, error) {
	req, err := query.DefaultPaginationHandler(opts...)
	if err != nil {
		return nil, err
	}

	models, err := dbGetAllByToken(ctx, s.db, token, req)
	if err != nil {
		return nil, err
	}

	res := make([]*event.Record, len(models))
	for i, model := range models {
		res[i] = fromModel(model)
	}
	return res, nil
}
