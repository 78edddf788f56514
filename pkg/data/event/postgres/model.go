package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spacenexus/spacetoken-server/pkg/data/event"
	"github.com/spacenexus/spacetoken-server/pkg/pointer"

	pgutil "github.com/spacenexus/spacetoken-server/pkg/database/postgres"
	q "github.com/spacenexus/spacetoken-server/pkg/database/query"
)

const (
	tableName = "spacetoken__core_event"

	allColumns = `id, event_id, event_type, token, mint, authority, destination, amount, name, symbol, uri, new_authority, created_at`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	EventId   string `db:"event_id"`
	EventType uint32 `db:"event_type"`

	Token     string `db:"token"`
	Mint      string `db:"mint"`
	Authority string `db:"authority"`

	Destination sql.NullString `db:"destination"`
	// Stored as the bit pattern of the uint64 amount
	Amount sql.NullInt64 `db:"amount"`

	Name   sql.NullString `db:"name"`
	Symbol sql.NullString `db:"symbol"`
	Uri    sql.NullString `db:"uri"`

	NewAuthority sql.NullString `db:"new_authority"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *event.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		EventId:   obj.EventId,
		EventType: uint32(obj.EventType),

		Token:     obj.Token,
		Mint:      obj.Mint,
		Authority: obj.Authority,

		Destination: toNullString(obj.Destination),
		Amount: sql.NullInt64{
			Valid: obj.Amount != nil,
			Int64: int64(*pointer.Uint64OrDefault(obj.Amount, 0)),
		},

		Name:   toNullString(obj.Name),
		Symbol: toNullString(obj.Symbol),
		Uri:    toNullString(obj.Uri),

		NewAuthority: toNullString(obj.NewAuthority),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *event.Record {
	return &event.Record{
		Id: uint64(obj.Id.Int64),

		EventId:   obj.EventId,
		EventType: event.Type(obj.EventType),

		Token:     obj.Token,
		Mint:      obj.Mint,
		Authority: obj.Authority,

		Destination: pointer.StringIfValid(obj.Destination.Valid, obj.Destination.String),
		Amount:      pointer.Uint64IfValid(obj.Amount.Valid, uint64(obj.Amount.Int64)),

		Name:   pointer.StringIfValid(obj.Name.Valid, obj.Name.String),
		Symbol: pointer.StringIfValid(obj.Symbol.Valid, obj.Symbol.String),
		Uri:    pointer.StringIfValid(obj.Uri.Valid, obj.Uri.String),

		NewAuthority: pointer.StringIfValid(obj.NewAuthority.Valid, obj.NewAuthority.String),

		CreatedAt: obj.CreatedAt.UTC(),
	}
}

func (m *model) dbSave(ctx context.Context, db *sqlx.DB) error {
	return pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(event_id, event_type, token, mint, authority, destination, amount, name, symbol, uri, new_authority, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (event_id) DO NOTHING
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		err := tx.QueryRowxContext(
			ctx,
			query,

			m.EventId,
			m.EventType,

			m.Token,
			m.Mint,
			m.Authority,

			m.Destination,
			m.Amount,

			m.Name,
			m.Symbol,
			m.Uri,

			m.NewAuthority,

			m.CreatedAt,
		).StructScan(m)

		return pgutil.CheckNoRows(err, event.ErrEventExists)
	})
}

func dbGet(ctx context.Context, db *sqlx.DB, id string) (*model, error) {
	var res model

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE event_id = $1
	`

	err := db.GetContext(ctx, &res, query, id)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, event.ErrEventNotFound)
	}
	return &res, nil
}

func dbGetAllByToken(ctx context.Context, db *sqlx.DB, token string, req *q.QueryOptions) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE (token = $1`

	opts := []interface{}{token}
	if req.FilterBy.IsValid() {
		query += ` AND event_type = $2`
		opts = append(opts, req.FilterBy.Value)
	}
	query += `)`

	query, opts = q.PaginateQuery(query, opts, req.Cursor, req.Limit, req.SortBy)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, event.ErrEventNotFound)
	}

	if len(res) == 0 {
		return nil, event.ErrEventNotFound
	}
	return res, nil
}

func toNullString(value *string) sql.NullString {
	return sql.NullString{
		Valid:  value != nil,
		String: *pointer.StringOrDefault(value, ""),
	}
}
