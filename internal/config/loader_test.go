package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noEnvFiles = []string{}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if old, ok := os.LookupEnv(key); ok {
		t.Cleanup(func() { _ = os.Setenv(key, old) })
	} else {
		t.Cleanup(func() { _ = os.Unsetenv(key) })
	}
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", t.TempDir())
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		unsetEnv(t, "HIBP_API_KEY")
		unsetEnv(t, "HIBP_SUBSCRIPTION_PLAN")

		cfg, err := Load(Options{EnvFiles: noEnvFiles})
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "", cfg.APIKey)
		assert.Equal(t, "Pwned 1", cfg.SubscriptionPlan)
		assert.Equal(t, "stdio", cfg.Transport)

		assert.Equal(t, "https://haveibeenpwned.com/api/v3", cfg.API.BaseURL)
		assert.Equal(t, "https://api.pwnedpasswords.com/range", cfg.API.PasswordsURL)
		assert.Equal(t, "HIBP-MCP-Server", cfg.API.UserAgent)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)

		assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
		assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, DefaultStorePath(), cfg.Store.Path)

		assert.True(t, cfg.Cache.Enabled)
		assert.Equal(t, 6*time.Hour, cfg.Cache.CatalogTTL)
		assert.Equal(t, 24*time.Hour, cfg.Cache.RangeTTL)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)

		assert.Same(t, cfg, GetConfig())
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("HIBP_API_KEY", "  secret-key  ")
		t.Setenv("HIBP_SUBSCRIPTION_PLAN", "Pwned 3")
		t.Setenv("HIBP_CACHE_ENABLED", "false")
		t.Setenv("HIBP_SERVER_PORT", "9000")
		t.Setenv("HIBP_API_TIMEOUT", "5s")

		cfg, err := Load(Options{EnvFiles: noEnvFiles})
		require.NoError(t, err)

		assert.Equal(t, "secret-key", cfg.APIKey)
		assert.Equal(t, "Pwned 3", cfg.SubscriptionPlan)
		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		unsetEnv(t, "HIBP_SUBSCRIPTION_PLAN")
		path := writeFile(t, t.TempDir(), "config.yaml", `
subscription_plan: Pwned 5
transport: http
server:
  port: 7000
cache:
  range_ttl: 1h
`)

		cfg, err := Load(Options{ConfigFile: path, EnvFiles: noEnvFiles})
		require.NoError(t, err)

		assert.Equal(t, "Pwned 5", cfg.SubscriptionPlan)
		assert.Equal(t, "http", cfg.Transport)
		assert.Equal(t, 7000, cfg.Server.Port)
		assert.Equal(t, time.Hour, cfg.Cache.RangeTTL)
	})

	t.Run("MissingExplicitConfigFile", func(t *testing.T) {
		_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml"), EnvFiles: noEnvFiles})
		require.Error(t, err)
	})

	t.Run("RuntimeOverridesBeatEnvironment", func(t *testing.T) {
		t.Setenv("HIBP_TRANSPORT", "stdio")

		cfg, err := Load(Options{EnvFiles: noEnvFiles}, map[string]any{
			"transport": "http",
			"server": map[string]any{
				"host": "0.0.0.0",
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "http", cfg.Transport)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	})

	t.Run("EnvFile", func(t *testing.T) {
		unsetEnv(t, "HIBP_SUBSCRIPTION_PLAN")
		envFile := writeFile(t, t.TempDir(), ".env", "HIBP_SUBSCRIPTION_PLAN=Pwned 4\n")

		cfg, err := Load(Options{EnvFiles: []string{envFile, filepath.Join(t.TempDir(), "absent.env")}})
		require.NoError(t, err)

		assert.Equal(t, "Pwned 4", cfg.SubscriptionPlan)
	})
}

func TestFlatten(t *testing.T) {
	flat := flatten("", map[string]any{
		"Transport": "http",
		"server": map[string]any{
			"port": 1,
			"tls":  map[string]any{"enabled": true},
		},
	})

	assert.Equal(t, map[string]any{
		"transport":          "http",
		"server.port":        1,
		"server.tls.enabled": true,
	}, flat)
}
