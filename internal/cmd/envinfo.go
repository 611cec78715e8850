package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/hibp-mcp/hibp-mcp/internal/config"
	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information. The API key is never printed.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		logger := observability.Logger()

		logger.Info("=== hibp-mcp Environment Information ===")
		logger.Info("")

		// Application Info
		logger.Info("Application:")
		logger.Info("  Name:       " + config.AppName)
		logger.Info("  Version:    " + versionInfo.Version)
		logger.Info("  Commit:     " + versionInfo.Commit)
		logger.Info("  Built:      " + versionInfo.BuildDate)
		logger.Info("")

		// SSOT Info
		logger.Info("SSOT:")
		logger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		logger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		logger.Info("")

		// Runtime Info
		logger.Info("Runtime:")
		logger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		logger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		logger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		logger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		logger.Info("")

		cfg, err := loadedConfig()
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return
		}

		plan, known := core.Plans.Resolve(cfg.SubscriptionPlan)
		planLabel := plan.Plan
		if !known {
			planLabel = fmt.Sprintf("%s (unknown %q, using default)", plan.Plan, cfg.SubscriptionPlan)
		}

		// HIBP
		logger.Info("HIBP:")
		logger.Info("  API Key:        "+keyStatus(cfg.APIKey), zap.Bool("api_key_set", cfg.APIKey != ""))
		logger.Info("  Plan:           "+planLabel, zap.String("plan", plan.Plan))
		logger.Info(fmt.Sprintf("  Quota:          %d requests/minute", plan.RequestsPerMinute), zap.Int("requests_per_minute", plan.RequestsPerMinute))
		logger.Info("  API URL:        "+cfg.API.BaseURL, zap.String("base_url", cfg.API.BaseURL))
		logger.Info("  Passwords URL:  "+cfg.API.PasswordsURL, zap.String("passwords_url", cfg.API.PasswordsURL))
		logger.Info("  Timeout:        "+cfg.API.Timeout.String())
		logger.Info("")

		// Configuration
		logger.Info("Configuration:")
		logger.Info("  Transport:      "+cfg.Transport, zap.String("transport", cfg.Transport))
		logger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		logger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		logger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		logger.Info(fmt.Sprintf("  Cache Enabled:  %t", cfg.Cache.Enabled), zap.Bool("cache_enabled", cfg.Cache.Enabled))
		logger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			logger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			logger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		logger.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		logger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
	},
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}
	return "set"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
