package cmd

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/engine"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
	"github.com/hibp-mcp/hibp-mcp/internal/core/store"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
)

// services bundles the components shared by serve and the lookup commands.
type services struct {
	cfg      *config.Config
	plan     core.RateLimitConfig
	governor *engine.Governor
	breaker  *hibp.Breaker
	store    *store.Store
	client   *hibp.Client
}

// loadedConfig returns the configuration resolved by initConfig.
func loadedConfig() (*config.Config, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, apperrors.NewConfigInvalidError("configuration not loaded")
	}
	return cfg, nil
}

// requireAPIKey fails when no HIBP API key is configured.
func requireAPIKey(cfg *config.Config) error {
	if cfg == nil || cfg.APIKey == "" {
		return apperrors.NewConfigInvalidError("Missing required environment variable: HIBP_API_KEY")
	}
	return nil
}

// newServices wires the governor, breaker, optional cache and client for cfg.
// A cache that cannot be opened is logged and skipped.
func newServices(ctx context.Context, cfg *config.Config, logger core.Logger, version string) (*services, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigInvalidError("configuration not loaded")
	}

	plan := core.Plans.ResolvePlan(logger, cfg.SubscriptionPlan)

	governor := engine.NewGovernor(plan,
		engine.WithLogger(logger),
		engine.WithObserver(func(waited time.Duration) {
			metrics.RecordAdmission(plan.Plan, waited)
		}),
	)

	breaker := hibp.NewBreaker("hibp", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout, logger)

	rt := &services{
		cfg:      cfg,
		plan:     plan,
		governor: governor,
		breaker:  breaker,
	}

	if cfg.Cache.Enabled {
		db, err := openStore(ctx, cfg)
		if err != nil {
			if logger != nil {
				logger.Warn("Response cache unavailable, continuing without it",
					zap.String("database", getDBPath()),
					zap.Error(err))
			}
		} else {
			rt.store = db
		}
	}

	rt.client = &hibp.Client{
		BaseURL:      cfg.API.BaseURL,
		PasswordsURL: cfg.API.PasswordsURL,
		APIKey:       cfg.APIKey,
		UserAgent:    cfg.API.UserAgent,
		HTTPClient:   &http.Client{Timeout: cfg.API.Timeout},
		Governor:     governor,
		Breaker:      breaker,
		CachePolicy: hibp.CachePolicy{
			CatalogTTL: cfg.Cache.CatalogTTL,
			RangeTTL:   cfg.Cache.RangeTTL,
		},
		ToolVersion: version,
		Logger:      logger,
	}
	if rt.store != nil {
		rt.client.Cache = rt.store
		rt.client.UseCache = true
	}

	return rt, nil
}

// Close releases the cache database, if one was opened.
func (r *services) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigInvalidError("configuration not loaded")
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, apperrors.WrapDatabaseError(ctx, err, "failed to open cache store")
	}
	return db, nil
}

// getDBPath returns the resolved database path from config
func getDBPath() string {
	cfg := config.GetConfig()
	if cfg == nil {
		return config.DefaultStorePath()
	}
	if cfg.Store.URL != "" {
		return cfg.Store.URL
	}
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	if absPath, err := filepath.Abs(dbPath); err == nil {
		return absPath
	}
	return dbPath
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(time.RFC3339)
}
