package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

var fixedEndpoints = map[string]string{
	"/":             "/",
	"/mcp":          "/mcp",
	"/version":      "/version",
	"/health":       "/health/*",
	"/health/live":  "/health/*",
	"/health/ready": "/health/*",
}

// getEndpointPattern labels a request by its chi route so metrics stay low
// cardinality. Requests without a route fall back to a fixed table.
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if endpoint, ok := fixedEndpoints[r.URL.Path]; ok {
		return endpoint
	}
	return "/unknown"
}

// RequestMetrics records count, latency and size for every HTTP request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if observability.TelemetrySystem == nil {
			next.ServeHTTP(w, r)
			return
		}

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		endpoint := getEndpointPattern(r)
		metrics.RecordHTTPRequest(r.Method, endpoint, status, elapsed, ww.BytesWritten())

		observability.Logger().Debug("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("endpoint", endpoint),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.Int("response_size", ww.BytesWritten()),
			zap.String("request_id", GetRequestID(r.Context())))
	})
}
