package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the server can start with the current configuration.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.Logger()
		logger.Info("Running health check...")

		// Check 1: Version info available
		if versionInfo.Version == "" {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", apperrors.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		// Check 2: Configuration loaded
		cfg, err := loadedConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration not loaded", err)
			return
		}
		logger.Info("✅ Configuration loaded")

		// Check 3: API key present
		if err := requireAPIKey(cfg); err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Missing required environment variable: HIBP_API_KEY", err)
			return
		}
		logger.Info("✅ HIBP API key configured")

		// Check 4: Plan recognised
		plan, known := core.Plans.Resolve(cfg.SubscriptionPlan)
		if !known {
			logger.Warn("⚠️  Unknown subscription plan, "+plan.Plan+" limits apply",
				zap.String("requested_plan", cfg.SubscriptionPlan))
		} else {
			logger.Info("✅ Subscription plan "+plan.Plan, zap.Int("requests_per_minute", plan.RequestsPerMinute))
		}

		// Check 5: Cache store reachable
		if cfg.Cache.Enabled {
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				logger.Warn("⚠️  Response cache unavailable; lookups will not be cached", zap.Error(err))
			} else {
				_ = db.Close()
				logger.Info("✅ Response cache reachable", zap.String("database", getDBPath()))
			}
		}

		// Overall status
		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
