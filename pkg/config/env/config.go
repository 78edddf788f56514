// Package env sources config values from environment variables.
package env

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spacenexus/spacetoken-server/pkg/config"
	"github.com/spacenexus/spacetoken-server/pkg/config/wrapper"
)

// value is an environment variable captured at construction. Later changes to
// the environment are not observed.
type value string

// NewConfig returns a config.Config holding the raw bytes of the upper-cased
// variable key. An empty or unset variable has no value.
func NewConfig(key string) config.Config {
	return value(os.Getenv(strings.ToUpper(key)))
}

func (v value) Get(context.Context) (interface{}, error) {
	if len(v) == 0 {
		return nil, config.ErrNoValue
	}
	return []byte(v), nil
}

func (value) Shutdown() {}

func NewUint64Config(key string, defaultValue uint64) config.Uint64 {
	return wrapper.NewUint64Config(NewConfig(key), defaultValue)
}

func NewFloat64Config(key string, defaultValue float64) config.Float64 {
	return wrapper.NewFloat64Config(NewConfig(key), defaultValue)
}

func NewBoolConfig(key string, defaultValue bool) config.Bool {
	return wrapper.NewBoolConfig(NewConfig(key), defaultValue)
}

func NewDurationConfig(key string, defaultValue time.Duration) config.Duration {
	return wrapper.NewDurationConfig(NewConfig(key), defaultValue)
}
