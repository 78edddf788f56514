package app

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config is the raw "app" section, handed to App.Init for the application to
// decode itself.
type Config map[string]interface{}

// BaseConfig configures the process: listeners, logging, metrics and runtime
// tuning. Application settings live under AppConfig.
type BaseConfig struct {
	LogLevel string `mapstructure:"log_level"`

	AppName string `mapstructure:"app_name"`

	ListenAddress         string `mapstructure:"listen_address"`
	InsecureListenAddress string `mapstructure:"insecure_listen_address"`
	DebugListenAddress    string `mapstructure:"debug_listen_address"`
	WebListenAddress      string `mapstructure:"web_listen_address"`

	// CorsAllowedOrigins enables CORS on the web server for the listed origins.
	CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// TLSCertificate and TLSKey enable the secure gRPC listener. Both are
	// resolved through LoadFile: a bare path, a file:// URL, or env://NAME for
	// a base64 encoded environment variable.
	TLSCertificate string `mapstructure:"tls_certificate"`
	TLSKey         string `mapstructure:"tls_private_key"`

	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`

	EnablePprof  bool `mapstructure:"enable_pprof"`
	EnableExpvar bool `mapstructure:"enable_expvar"`

	// Ballast for improving Go GC performance, as a fraction of total memory
	// capped at maxBallastCapacity.
	// https://blog.twitch.tv/en/2019/04/10/go-memory-ballast-how-i-learnt-to-stop-worrying-and-love-the-heap/
	EnableBallast   bool    `mapstructure:"enable_ballast"`
	BallastCapacity float32 `mapstructure:"ballast_capacity"`

	// Periodically terminate the application when there's a memory leak
	EnableMemoryLeakCron   bool   `mapstructure:"enable_memory_leak_cron"`
	MemoryLeakCronSchedule string `mapstructure:"memory_leak_cron_schedule"`

	// Metrics configuration across many providers
	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`

	AppConfig Config `mapstructure:"app"`
}

var defaultConfig = BaseConfig{
	LogLevel: "info",

	ListenAddress:         ":8085",
	InsecureListenAddress: "localhost:8086",
	DebugListenAddress:    ":8123",
	WebListenAddress:      ":8080",

	ShutdownGracePeriod: 30 * time.Second,

	EnablePprof:  true,
	EnableExpvar: true,

	EnableBallast:   true,
	BallastCapacity: 0.333,

	EnableMemoryLeakCron:   false,
	MemoryLeakCronSchedule: "0 5 * * *",
}

// maxBallastCapacity bounds BallastCapacity as a fraction of total memory.
const maxBallastCapacity = 0.5

// envBoundKeys are the BaseConfig keys that can be overridden by the
// upper-cased environment variable of the same name.
var envBoundKeys = []string{
	"log_level",
	"app_name",
	"listen_address",
	"insecure_listen_address",
	"debug_listen_address",
	"web_listen_address",
	"cors_allowed_origins",
	"tls_certificate",
	"tls_private_key",
	"shutdown_grace_period",
	"enable_pprof",
	"enable_expvar",
	"enable_ballast",
	"ballast_capacity",
	"enable_memory_leak_cron",
	"memory_leak_cron_schedule",
	"new_relic_license_key",
}

func init() {
	for _, key := range envBoundKeys {
		_ = viper.BindEnv(key, strings.ToUpper(key))
	}
}

// Validate rejects configurations that Run could not start with.
func (c BaseConfig) Validate() error {
	if len(c.AppName) == 0 {
		return errors.New("must specify an application name")
	}
	if len(c.TLSCertificate) > 0 && len(c.TLSKey) == 0 {
		return errors.New("tls key must be provided if certificate is specified")
	}
	if c.ShutdownGracePeriod <= 0 {
		return errors.New("shutdown grace period must be positive")
	}
	if c.EnableBallast && c.BallastCapacity < 0 {
		return errors.New("ballast capacity cannot be negative")
	}
	if c.EnableMemoryLeakCron {
		if _, err := cron.ParseStandard(c.MemoryLeakCronSchedule); err != nil {
			return errors.Wrap(err, "invalid memory leak cron schedule")
		}
	}
	return nil
}
