package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// v receives bound command flags; config.Load layers them over file,
	// environment and defaults.
	v = viper.New()

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Have I Been Pwned MCP server",
	Long: `hibp-mcp exposes the Have I Been Pwned API to MCP clients.

It serves the HIBP-Breaches, HIBP-Pastes and HIBP-PwnedPasswords tools over
stdio or streamable HTTP, pacing account lookups to the request quota of the
configured subscription plan. The same lookups are available as CLI commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early to prevent config loading from emitting
	// metrics to stdout. Server mode will initialize proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/hibp-mcp/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().String("plan", "", "HIBP subscription plan (Pwned 1 to Pwned 5)")

	_ = v.BindPFlag("subscription_plan", rootCmd.PersistentFlags().Lookup("plan"))
}

// initConfig loads layered configuration before any command runs.
func initConfig() {
	// Initialize CLI logger early so we can use it in config loading
	observability.InitCLILogger(config.AppName, verbose)

	cfg, err := config.Load(config.Options{ConfigFile: cfgFile, Viper: v})
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to load configuration", err)
		return
	}

	if verbose {
		if used := v.ConfigFileUsed(); used != "" {
			observability.CLILogger.Debug("Using config file", zap.String("path", used))
		} else {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		}
		observability.CLILogger.Debug("Configuration loaded",
			zap.String("plan", cfg.SubscriptionPlan),
			zap.Bool("api_key_set", cfg.APIKey != ""),
			zap.Bool("cache_enabled", cfg.Cache.Enabled))
	}
}
