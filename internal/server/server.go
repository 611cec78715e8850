package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/server/handlers"
	servermw "github.com/hibp-mcp/hibp-mcp/internal/server/middleware"
)

// MCPEndpoint is the streamable HTTP endpoint path.
const MCPEndpoint = "/mcp"

// Options configures the HTTP transport.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AdminToken enables POST /admin/signal when set.
	AdminToken string

	MCP    *mcpserver.MCPServer
	Health *handlers.HealthManager
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	mcpHTTP *mcpserver.StreamableHTTPServer
	health  *handlers.HealthManager
	opts    Options
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	// Standard chi middleware
	r.Use(middleware.RealIP)

	// Our custom middleware in correct order (RequestID → Metrics → Logging → Recovery)
	r.Use(servermw.RequestID)      // 1. Request ID (early for correlation)
	r.Use(servermw.RequestMetrics) // 2. Metrics (measure everything)
	r.Use(servermw.Recovery)       // 3. Panic recovery

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewNotFoundError("The requested resource was not found")
		apperrors.RespondWithError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		apperrors.RespondWithError(w, req, err)
	})

	health := opts.Health
	if health == nil {
		health = handlers.NewHealthManager(handlers.AppVersion, "")
	}

	s := &Server{
		router: r,
		health: health,
		opts:   opts,
	}

	if opts.MCP != nil {
		s.mcpHTTP = mcpserver.NewStreamableHTTPServer(opts.MCP,
			mcpserver.WithEndpointPath(MCPEndpoint),
			mcpserver.WithStateLess(true),
		)
	}

	// Ensure handlers use the centralized error responder
	handlers.SetHTTPErrorResponder(apperrors.RespondWithError)

	s.registerRoutes()

	return s
}

// Start starts the HTTP server and blocks until it stops. A clean Shutdown
// returns nil.
func (s *Server) Start() error {
	addr := s.Addr()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  durationOr(s.opts.ReadTimeout, 30*time.Second),
		WriteTimeout: durationOr(s.opts.WriteTimeout, 5*time.Minute),
		IdleTimeout:  durationOr(s.opts.IdleTimeout, 120*time.Second),
	}

	observability.Logger().Info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr),
		zap.String("mcp_endpoint", MCPEndpoint))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.Logger().Info("Shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.opts.Port
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
