package tokenadmin

import (
	"github.com/spacenexus/spacetoken-server/pkg/config"
	"github.com/spacenexus/spacetoken-server/pkg/config/env"
	"github.com/spacenexus/spacetoken-server/pkg/config/memory"
	"github.com/spacenexus/spacetoken-server/pkg/config/wrapper"
)

const (
	envConfigPrefix = "SPACETOKEN_ADMIN_"

	EnforceMintAuthorityConfigEnvName = envConfigPrefix + "ENFORCE_MINT_AUTHORITY"
	defaultEnforceMintAuthority       = true

	DisableEventHistoryConfigEnvName = envConfigPrefix + "DISABLE_EVENT_HISTORY"
	defaultDisableEventHistory       = false
)

type conf struct {
	enforceMintAuthority config.Bool
	disableEventHistory  config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			enforceMintAuthority: env.NewBoolConfig(EnforceMintAuthorityConfigEnvName, defaultEnforceMintAuthority),
			disableEventHistory:  env.NewBoolConfig(DisableEventHistoryConfigEnvName, defaultDisableEventHistory),
		}
	}
}

type testOverrides struct {
	disableMintAuthorityCheck bool
	disableEventHistory       bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			enforceMintAuthority: wrapper.NewBoolConfig(memory.NewConfig(!overrides.disableMintAuthorityCheck), defaultEnforceMintAuthority),
			disableEventHistory:  wrapper.NewBoolConfig(memory.NewConfig(overrides.disableEventHistory), defaultDisableEventHistory),
		}
	}
}
