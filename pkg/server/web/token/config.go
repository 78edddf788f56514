package token

import (
	"time"

	"github.com/spacenexus/spacetoken-server/pkg/config"
	"github.com/spacenexus/spacetoken-server/pkg/config/env"
	"github.com/spacenexus/spacetoken-server/pkg/config/memory"
	"github.com/spacenexus/spacetoken-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "SPACETOKEN_WEB_"

	// Mutations per second, per signing authority
	RateLimitConfigEnvName = envConfigPrefix + "RATE_LIMIT"
	defaultRateLimit       = 5.0

	MaxMessageAgeConfigEnvName = envConfigPrefix + "MAX_MESSAGE_AGE"
	defaultMaxMessageAge       = 5 * time.Minute

	MaxPageSizeConfigEnvName = envConfigPrefix + "MAX_PAGE_SIZE"
	defaultMaxPageSize       = 100
)

type conf struct {
	rateLimit     config.Float64
	maxMessageAge config.Duration
	maxPageSize   config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			rateLimit:     env.NewFloat64Config(RateLimitConfigEnvName, defaultRateLimit),
			maxMessageAge: env.NewDurationConfig(MaxMessageAgeConfigEnvName, defaultMaxMessageAge),
			maxPageSize:   env.NewUint64Config(MaxPageSizeConfigEnvName, defaultMaxPageSize),
		}
	}
}

type testOverrides struct {
	rateLimit   float64
	maxPageSize uint64
}

// withManualTestOverrides disables rate limiting unless a rate is provided.
// A zero maxPageSize keeps the default.
func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		var maxPageSize config.Config = config.NoopConfig
		if overrides.maxPageSize > 0 {
			maxPageSize = memory.NewConfig(overrides.maxPageSize)
		}

		return &conf{
			rateLimit:     wrapper.NewFloat64Config(memory.NewConfig(overrides.rateLimit), defaultRateLimit),
			maxMessageAge: wrapper.NewDurationConfig(memory.NewConfig(time.Minute), defaultMaxMessageAge),
			maxPageSize:   wrapper.NewUint64Config(maxPageSize, defaultMaxPageSize),
		}
	}
}
