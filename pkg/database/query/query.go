// Package query carries paging, ordering and filtering options from API
// handlers down to stores, which declare the subset they support.
package query

import (
	"github.com/pkg/errors"
)

var ErrQueryNotSupported = errors.New("the requested query option is not supported")

// SupportedOptions is a bitset of the options a store accepts.
type SupportedOptions byte

const (
	CanLimitResults SupportedOptions = 1 << iota
	CanSortBy
	CanQueryByCursor
	CanFilterBy
)

type QueryOptions struct {
	Supported SupportedOptions

	SortBy   Ordering
	Limit    uint64
	Cursor   Cursor
	FilterBy Filter
}

type Option func(*QueryOptions) error

func (qo *QueryOptions) supports(capability SupportedOptions) bool {
	return qo.Supported&capability == capability
}

func (qo *QueryOptions) Apply(opts ...Option) error {
	for _, o := range opts {
		if err := o(qo); err != nil {
			return err
		}
	}
	return nil
}

// IsPastCursor reports whether a record with the given id comes after the
// cursor in the requested order. Everything is past an unset cursor.
func (qo *QueryOptions) IsPastCursor(id uint64) bool {
	if len(qo.Cursor) == 0 {
		return true
	}
	if qo.SortBy == Descending {
		return id < qo.Cursor.ToUint64()
	}
	return id > qo.Cursor.ToUint64()
}

// InOrder reports whether a record with id a belongs before one with id b.
func (qo *QueryOptions) InOrder(a, b uint64) bool {
	if qo.SortBy == Descending {
		return a > b
	}
	return a < b
}

func option(capability SupportedOptions, apply func(*QueryOptions) error) Option {
	return func(qo *QueryOptions) error {
		if !qo.supports(capability) {
			return ErrQueryNotSupported
		}
		return apply(qo)
	}
}

func WithFilter(val Filter) Option {
	return option(CanFilterBy, func(qo *QueryOptions) error {
		qo.FilterBy = val
		return nil
	})
}

func WithDirection(val Ordering) Option {
	return option(CanSortBy, func(qo *QueryOptions) error {
		qo.SortBy = val
		return nil
	})
}

func WithLimit(val uint64) Option {
	return option(CanLimitResults, func(qo *QueryOptions) error {
		qo.Limit = val
		return nil
	})
}

// WithCursor accepts an empty cursor, which means start from the beginning.
func WithCursor(val []byte) Option {
	return option(CanQueryByCursor, func(qo *QueryOptions) error {
		if len(val) != 0 && len(val) != cursorSize {
			return ErrQueryNotSupported
		}
		qo.Cursor = val
		return nil
	})
}
