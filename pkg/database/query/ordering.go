package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Ordering is the direction records are returned in, keyed by id.
type Ordering uint

const (
	Ascending Ordering = iota
	Descending
)

var orderingNames = map[string]Ordering{
	"asc":  Ascending,
	"desc": Descending,
}

// ToOrdering parses "asc" or "desc", ignoring case and surrounding whitespace.
func ToOrdering(val string) (Ordering, error) {
	ordering, ok := orderingNames[strings.ToLower(strings.TrimSpace(val))]
	if !ok {
		return 0, errors.Errorf("unexpected ordering: %q", val)
	}
	return ordering, nil
}

func ToOrderingWithFallback(val string, fallback Ordering) Ordering {
	if ordering, err := ToOrdering(val); err == nil {
		return ordering
	}
	return fallback
}

// SQL returns the keyword used in an ORDER BY clause.
func (o Ordering) SQL() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}
