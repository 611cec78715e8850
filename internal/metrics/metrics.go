// Package metrics names every metric the adapter emits and records them
// through the shared telemetry system. Every recorder is a no-op until
// observability.InitMetrics has run.
package metrics

import (
	"time"

	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

// Upstream and pacing
const (
	GovernorAdmissionsTotal = "hibp_governor_admissions_total"
	GovernorWaitMs          = "hibp_governor_wait_ms"
	RequestsTotal           = "hibp_requests_total"
	RequestDurationMs       = "hibp_request_duration_ms"
	CacheLookupsTotal       = "hibp_cache_lookups_total"
	BreakerTransitionsTotal = "hibp_breaker_transitions_total"
	ToolCallsTotal          = "hibp_tool_calls_total"
)

// Process and transport
const (
	HealthCheckTotal     = "app_health_check_total"
	HealthCheckDuration  = "app_health_check_duration_ms"
	ServerStartTime      = "app_server_start_time_seconds"
	ErrorsTotalName      = "errors_total"
	ErrorsByEndpointName = "errors_by_endpoint"
	PanicsTotalName      = "panics_total"

	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDurationMs = "http_request_duration_ms"
	HTTPResponseSizeBytes = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"
)

type labels = map[string]string

func inc(name string, tags labels) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, tags)
	}
}

func observe(name string, d time.Duration, tags labels) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, tags)
	}
}

func set(name string, value float64, tags labels) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, tags)
	}
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
