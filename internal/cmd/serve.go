package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/server"
	"github.com/hibp-mcp/hibp-mcp/internal/server/handlers"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the HIBP MCP server.

Transports:
  • stdio (default): JSON-RPC over stdin/stdout for MCP clients that spawn
    the server. Logs go to stderr.
  • http: streamable HTTP at /mcp, plus /health, /version and /metrics.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (plan and API key changes need a restart)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("transport", transportStdio, "MCP transport: stdio, http")
	serveCmd.Flags().String("host", "localhost", "HTTP transport host")
	serveCmd.Flags().IntP("port", "p", 8080, "HTTP transport port")

	_ = v.BindPFlag("transport", serveCmd.Flags().Lookup("transport"))
	_ = v.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig()
	if err != nil {
		return err
	}

	transport, err := parseTransport(cfg.Transport)
	if err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid transport", err)
		return err
	}

	if err := requireAPIKey(cfg); err != nil {
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Missing required environment variable: HIBP_API_KEY", err)
		return err
	}

	observability.InitServerLogger(config.AppName, cfg.Logging.Level, map[string]any{
		"transport": transport,
	})
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(observability.DefaultMetricsNamespace, cfg.Metrics.Port); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return apperrors.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc, err := newServices(ctx, cfg, logger, versionInfo.Version)
	if err != nil {
		return err
	}

	logger.Info("Initializing server",
		zap.String("service", config.AppName),
		zap.String("version", versionInfo.Version),
		zap.String("transport", transport),
		zap.String("plan", svc.plan.Plan),
		zap.Int("requests_per_minute", svc.plan.RequestsPerMinute),
		zap.Bool("cache_enabled", svc.store != nil),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled))

	mcp := server.NewMCPServer(versionInfo.Version, svc.client)

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}

	// Register graceful shutdown handlers (LIFO order - last registered, first executed)
	// Handler 1: Flush logger and close the cache (executed last)
	signals.OnShutdown(func(ctx context.Context) error {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close cache store", zap.Error(err))
		}
		if err := observability.StopMetrics(); err != nil {
			logger.Warn("Failed to stop metrics exporter", zap.Error(err))
		}
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			// Sync errors are often benign (stdout/stderr already closed)
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	var httpSrv *server.Server
	if transport == transportHTTP {
		health := handlers.NewHealthManager(versionInfo.Version, svc.plan.Plan)
		registerHealthChecks(health, svc)

		httpSrv = server.New(server.Options{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			AdminToken:   cfg.Server.AdminToken,
			MCP:          mcp,
			Health:       health,
		})
	}

	// Handler 2: Stop the transport (executed first)
	signals.OnShutdown(func(sctx context.Context) error {
		logger.Info("Stopping MCP transport...")
		defer cancel()
		if httpSrv == nil {
			return nil
		}

		shutdownCtx, done := context.WithTimeout(sctx, shutdownTimeout)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return apperrors.WrapInternal(sctx, err, "server shutdown failed")
		}
		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(rctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		reloaded, err := config.Load(config.Options{ConfigFile: cfgFile, Viper: v})
		if err != nil {
			logger.Error("Failed to reload config", zap.Error(err))
			return apperrors.WrapInternal(rctx, err, "config reload failed")
		}
		if reloaded.SubscriptionPlan != cfg.SubscriptionPlan || reloaded.APIKey != cfg.APIKey {
			logger.Warn("Plan or API key changed; restart the server to apply",
				zap.String("active_plan", svc.plan.Plan),
				zap.String("configured_plan", reloaded.SubscriptionPlan))
		}
		logger.Info("Configuration reloaded successfully")
		return nil
	})

	// Enable double-tap force quit (Ctrl+C within 2 seconds)
	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	metrics.SetServerStartTime(time.Now().Unix())

	errChan := make(chan error, 2)
	go func() {
		if httpSrv != nil {
			errChan <- httpSrv.Start()
			return
		}
		logger.Info("Serving MCP over stdio")
		errChan <- mcpserver.NewStdioServer(mcp).Listen(ctx, os.Stdin, os.Stdout)
	}()

	// Start signal listener in background
	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	// Wait for the transport to stop or a signal failure
	err = <-errChan
	if err != nil && ctx.Err() == nil {
		return apperrors.WrapInternal(cmd.Context(), err, "server error")
	}

	logger.Info("Server stopped")
	return nil
}

func parseTransport(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", transportStdio:
		return transportStdio, nil
	case transportHTTP:
		return transportHTTP, nil
	default:
		return "", apperrors.NewInvalidInputError(fmt.Sprintf("unsupported transport: %s (expected stdio or http)", value))
	}
}

// registerHealthChecks reports the breaker as degraded while it is open and
// the cache as unhealthy when its database stops answering.
func registerHealthChecks(health *handlers.HealthManager, svc *services) {
	health.RegisterChecker("hibp_breaker", handlers.CheckFunc(func(ctx context.Context) error {
		if state := svc.breaker.State(); state != "closed" {
			return &handlers.DegradedError{Reason: "HIBP circuit breaker is " + state}
		}
		return nil
	}))

	if svc.store != nil {
		health.RegisterChecker("cache_store", handlers.CheckFunc(func(ctx context.Context) error {
			if err := svc.store.Ping(ctx); err != nil {
				return apperrors.WrapDatabaseError(ctx, err, "cache store unreachable")
			}
			return nil
		}))
	}

	if observability.TelemetrySystem != nil {
		health.RegisterChecker("telemetry", handlers.CheckFunc(func(ctx context.Context) error {
			if observability.PrometheusExporter == nil {
				return apperrors.NewInternalError("telemetry exporter not initialized")
			}
			return nil
		}))
	}
}
