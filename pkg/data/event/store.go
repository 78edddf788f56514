package event

import (
	"context"
	"errors"

	"github.com/spacenexus/spacetoken-server/pkg/database/query"
)

var (
	ErrEventNotFound = errors.New("event record not found")
	ErrEventExists   = errors.New("event record already exists")
)

type Store interface {
	// Save appends an event record. Events are immutable once saved.
	//
	// Returns ErrEventExists if the event id is already in use.
	Save(ctx context.Context, record *Record) error

	// Get gets an event record by its event ID
	Get(ctx context.Context, id string) (*Record, error)

	// GetAllByToken pages through the history of a token. The cursor is the
	// record id and the filter, when set, is an event Type.
	//
	// Returns ErrEventNotFound if no records are found.
	GetAllByToken(ctx context.Context, token string, opts ...query.Option) ([]*Record, error)
}
