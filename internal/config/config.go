package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tickerwatch/tickerwatch/internal/core"
)

// Policy names for reacting to a provider failure mid-loop.
const (
	OnFetchErrorContinue = "continue"
	OnFetchErrorExit     = "exit"
)

type Config struct {
	Watch    WatchConfig    `mapstructure:"watch"`
	Provider ProviderConfig `mapstructure:"provider"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type WatchConfig struct {
	From         string        `mapstructure:"from"`
	Symbols      []string      `mapstructure:"symbols"`
	Window       int           `mapstructure:"window"`
	Interval     time.Duration `mapstructure:"interval"`
	Relative     bool          `mapstructure:"relative"`
	Benchmark    string        `mapstructure:"benchmark"`
	NoHeaders    bool          `mapstructure:"no_headers"`
	OnFetchError string        `mapstructure:"on_fetch_error"`
}

type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("TICKERWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Watch: WatchConfig{
			Window:       30,
			Interval:     30 * time.Second,
			Benchmark:    "^GSPC",
			OnFetchError: OnFetchErrorContinue,
		},
		Provider: ProviderConfig{
			Timeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Validate checks the configuration for errors. The period-vs-window
// precondition is checked separately, once the period has been computed
// against today's date.
func (c *Config) Validate() error {
	if c.Watch.Window < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("window must be at least 1, got %d", c.Watch.Window))
	}
	if c.Watch.Interval <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("interval must be positive, got %s", c.Watch.Interval))
	}
	switch c.Watch.OnFetchError {
	case OnFetchErrorContinue, OnFetchErrorExit:
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("on_fetch_error must be %q or %q, got %q",
				OnFetchErrorContinue, OnFetchErrorExit, c.Watch.OnFetchError))
	}
	if c.Watch.Relative && c.Watch.Benchmark == "" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("benchmark symbol required when relative mode is enabled"))
	}
	if c.Provider.Timeout <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("provider timeout must be positive, got %s", c.Provider.Timeout))
	}
	return nil
}
