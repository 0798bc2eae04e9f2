// Package config is responsible for the tool's runtime settings. It uses
// Viper to merge defaults, SEO_PILOT_* environment variables and bound
// command-line flags into one Settings value.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/seo-pilot/internal/retry"
)

// EnvPrefix namespaces environment overrides, e.g. SEO_PILOT_STATE_DIR.
const EnvPrefix = "SEO_PILOT"

// Settings captures runtime knobs that are not part of the site config.
type Settings struct {
	StateDir string          `mapstructure:"state_dir"`
	Log      LogSettings     `mapstructure:"log"`
	HTTP     HTTPSettings    `mapstructure:"http"`
	Retry    RetrySettings   `mapstructure:"retry"`
	Inspect  InspectSettings `mapstructure:"inspect"`
	Metrics  MetricsSettings `mapstructure:"metrics"`
}

// LogSettings toggles zap development features.
type LogSettings struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPSettings configures the shared HTTP client.
type HTTPSettings struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	HostRPS   float64       `mapstructure:"host_rps"`
}

// RetrySettings configures backoff for rate-limited API calls.
type RetrySettings struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// InspectSettings paces URL Inspection calls.
type InspectSettings struct {
	RPS float64 `mapstructure:"rps"`
}

// MetricsSettings controls the optional Prometheus textfile export.
type MetricsSettings struct {
	Textfile string `mapstructure:"textfile"`
}

// New returns a Viper instance with defaults and environment binding applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("state_dir", ".seo-pilot")
	v.SetDefault("log.development", false)
	v.SetDefault("log.level", "warn")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.user_agent", "seo-pilot/0.1 (+https://github.com/JakeFAU/seo-pilot)")
	v.SetDefault("http.host_rps", 0)
	v.SetDefault("retry.max_retries", retry.DefaultMaxRetries)
	v.SetDefault("retry.base_delay", retry.DefaultBaseDelay.String())
	v.SetDefault("inspect.rps", 1)
	v.SetDefault("metrics.textfile", "")
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate enforces required values and reasonable limits.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.StateDir) == "" {
		return fmt.Errorf("state_dir must be set")
	}
	if s.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if s.HTTP.HostRPS < 0 {
		return fmt.Errorf("http.host_rps must be >= 0")
	}
	if s.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if s.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be > 0")
	}
	if s.Inspect.RPS <= 0 {
		return fmt.Errorf("inspect.rps must be > 0")
	}
	return nil
}

// RetryPolicy converts the retry settings for the API clients.
func (s Settings) RetryPolicy() retry.Policy {
	return retry.Policy{MaxRetries: s.Retry.MaxRetries, BaseDelay: s.Retry.BaseDelay}
}
