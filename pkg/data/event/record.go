package event

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spacenexus/spacetoken-server/pkg/pointer"
)

type Type uint32

const (
	UnknownEvent Type = iota
	TokenInitialized
	TokensMinted
	MetadataUpdated
	AuthorityTransferred
)

// Record is an entry in a token's operation history.
type Record struct {
	Id uint64

	EventId   string
	EventType Type

	// Record account, and its SPL mint when the operation names one
	Token string
	Mint  string

	// Principal that signed the operation
	Authority string

	// TokensMinted
	Destination *string
	Amount      *uint64

	// TokenInitialized and MetadataUpdated, set to the values written
	Name   *string
	Symbol *string
	Uri    *string

	// AuthorityTransferred
	NewAuthority *string

	CreatedAt time.Time
}

// NewEventId returns a fresh random event id.
func NewEventId() string {
	return uuid.New().String()
}

func ParseType(value string) (Type, error) {
	for t := TokenInitialized; t <= AuthorityTransferred; t++ {
		if t.String() == value {
			return t, nil
		}
	}
	return UnknownEvent, errors.New("unknown event type")
}

func (t Type) String() string {
	switch t {
	case TokenInitialized:
		return "initialize"
	case TokensMinted:
		return "mint"
	case MetadataUpdated:
		return "update_metadata"
	case AuthorityTransferred:
		return "transfer_authority"
	}
	return "unknown"
}

func (r *Record) Validate() error {
	if _, err := uuid.Parse(r.EventId); err != nil {
		return errors.New("event id must be a uuid")
	}

	if r.EventType == UnknownEvent || r.EventType > AuthorityTransferred {
		return errors.New("invalid event type")
	}

	if len(r.Token) == 0 {
		return errors.New("token is required")
	}

	if len(r.Authority) == 0 {
		return errors.New("authority is required")
	}

	switch r.EventType {
	case TokensMinted:
		if r.Destination == nil || len(*r.Destination) == 0 {
			return errors.New("destination is required for mint events")
		}
		if r.Amount == nil {
			return errors.New("amount is required for mint events")
		}
	case AuthorityTransferred:
		if r.NewAuthority == nil || len(*r.NewAuthority) == 0 {
			return errors.New("new authority is required for authority transfer events")
		}
	}

	return nil
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	cloned := *r
	cloned.Destination = pointer.StringCopy(r.Destination)
	cloned.Amount = pointer.Uint64Copy(r.Amount)
	cloned.Name = pointer.StringCopy(r.Name)
	cloned.Symbol = pointer.StringCopy(r.Symbol)
	cloned.Uri = pointer.StringCopy(r.Uri)
	cloned.NewAuthority = pointer.StringCopy(r.NewAuthority)
	return &cloned
}
