package config

import "time"

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the optional YAML config file,
// then HIBP_* environment variables (including .env files), then runtime
// overrides such as bound CLI flags.
type Config struct {
	APIKey           string        `mapstructure:"api_key"`
	SubscriptionPlan string        `mapstructure:"subscription_plan"`
	Transport        string        `mapstructure:"transport"`
	API              APIConfig     `mapstructure:"api"`
	Breaker          BreakerConfig `mapstructure:"breaker"`
	Server           ServerConfig  `mapstructure:"server"`
	Store            StoreConfig   `mapstructure:"store"`
	Cache            CacheConfig   `mapstructure:"cache"`
	Logging          LoggingConfig `mapstructure:"logging"`
	Metrics          MetricsConfig `mapstructure:"metrics"`
}

// APIConfig describes the upstream HIBP endpoints.
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	PasswordsURL string        `mapstructure:"passwords_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// BreakerConfig controls the circuit breaker around upstream calls.
type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ServerConfig contains HTTP transport configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// AdminToken enables the bearer-authenticated /admin/signal endpoint.
	AdminToken string `mapstructure:"admin_token"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig controls caching of public HIBP responses.
//
// Account lookups are never cached; only the breach catalogue and password
// range responses are.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	CatalogTTL time.Duration `mapstructure:"catalog_ttl"`
	RangeTTL   time.Duration `mapstructure:"range_ttl"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}
