package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler(handlers.MCPInfo{
		ServerName: MCPServerName,
		Endpoint:   MCPEndpoint,
		Stateless:  true,
		Tools:      []string{ToolBreaches, ToolPastes, ToolPwnedPassword},
	}))

	// Prometheus scrape proxy
	s.router.Get("/metrics", MetricsHandler)

	if s.mcpHTTP != nil {
		s.router.Handle(MCPEndpoint, s.mcpHTTP)
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint registers the admin signal endpoint when an admin
// token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.Logger()

	if s.opts.AdminToken == "" {
		logger.Debug("Admin signal endpoint disabled (no HIBP_SERVER_ADMIN_TOKEN set)")
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	logger.Info("Admin signal endpoint enabled",
		zap.String("path", "/admin/signal"),
		zap.String("auth", "bearer token"),
		zap.String("rate_limit", "10/min, burst 5"))
	logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
}
