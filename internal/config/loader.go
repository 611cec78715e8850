// Package config provides centralized configuration management for hibp-mcp.
// Configuration is layered:
// Layer 1: built-in defaults (SetDefaults)
// Layer 2: user config file (XDG config dir, ./config, or --config)
// Layer 3: HIBP_* environment variables, .env files and runtime overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the binary and config directory name.
	AppName = "hibp-mcp"

	// EnvPrefix namespaces environment variables (HIBP_API_KEY, ...).
	EnvPrefix = "HIBP"
)

// DefaultEnvFiles are loaded, when present, before environment lookup.
var DefaultEnvFiles = []string{".env.local", ".env"}

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit config file path. When empty, config.yaml is
	// searched in the XDG config directory and ./config.
	ConfigFile string

	// EnvFiles overrides DefaultEnvFiles. An empty, non-nil slice disables
	// .env loading.
	EnvFiles []string

	// Viper is the instance to populate; flags bound to it take part in
	// resolution. A fresh instance is used when nil.
	Viper *viper.Viper
}

// Load resolves configuration from all layers and stores it for GetConfig.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(opts Options, runtimeOverrides ...map[string]any) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	// Unmarshal into typed config struct
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	// Store the loaded config
	setConfig(cfg)

	return cfg, nil
}

// SetDefaults registers default configuration values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("subscription_plan", "Pwned 1")
	v.SetDefault("transport", "stdio")

	// Upstream defaults
	v.SetDefault("api.base_url", "https://haveibeenpwned.com/api/v3")
	v.SetDefault("api.passwords_url", "https://api.pwnedpasswords.com/range")
	v.SetDefault("api.user_agent", "HIBP-MCP-Server")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.timeout", "30s")

	// HTTP transport defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.catalog_ttl", "6h")
	v.SetDefault("cache.range_ttl", "24h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the cache database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", explicit, err)
		}
		return nil
	}

	if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("./config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// It's OK if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

func loadEnvFiles(files []string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// flatten converts nested override maps into dotted viper keys.
func flatten(prefix string, values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for key, value := range values {
		full := strings.ToLower(key)
		if prefix != "" {
			full = prefix + "." + full
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}
