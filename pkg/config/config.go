// Package config defines runtime tunables that may be sourced from the
// environment or swapped in memory by tests.
package config

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNoValue  = errors.New("config: no value set")
	ErrShutdown = errors.New("config: shutdown")
)

// Config yields an untyped value. ErrNoValue means the caller should use its
// default.
type Config interface {
	Get(ctx context.Context) (interface{}, error)
	Shutdown()
}

// NoopConfig never has a value.
var NoopConfig Config = noopConfig{}

type noopConfig struct{}

func (noopConfig) Get(context.Context) (interface{}, error) { return nil, ErrNoValue }
func (noopConfig) Shutdown()                                {}

// Typed is a Config that has already been converted to T. Get never fails and
// falls back to the last good value. GetSafe surfaces the failure.
type Typed[T any] interface {
	Get(ctx context.Context) T
	GetSafe(ctx context.Context) (T, error)
	Shutdown()
}

type (
	Bool     = Typed[bool]
	Duration = Typed[time.Duration]
	Float64  = Typed[float64]
	Uint64   = Typed[uint64]
)
