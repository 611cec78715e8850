package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// RecordHealthCheck records one health check run.
func RecordHealthCheck(check string, healthy bool, duration time.Duration) {
	inc(HealthCheckTotal, labels{"check": check, "status": pick(healthy, "healthy", "unhealthy")})
	observe(HealthCheckDuration, duration, labels{"check": check})
}

// SetServerStartTime records the server start as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	set(ServerStartTime, float64(timestamp), nil)
}

// RecordError records an error envelope code with the status it mapped to.
func RecordError(errorCode string, status int) {
	inc(ErrorsTotalName, labels{"error_code": errorCode, "http_status": strconv.Itoa(status)})
}

// RecordErrorByEndpoint records an error against an HTTP path or tool name.
func RecordErrorByEndpoint(endpoint, errorCode string) {
	inc(ErrorsByEndpointName, labels{"endpoint": endpoint, "error_code": errorCode})
}

// RecordPanic records a recovered panic.
func RecordPanic() {
	inc(PanicsTotalName, nil)
}

// RecordHTTPRequest records one served HTTP request. 4xx and 5xx responses
// also count toward HTTPErrorsTotal.
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration, size int) {
	code := strconv.Itoa(status)
	tags := labels{"method": method, "endpoint": endpoint, "status": code}
	inc(HTTPRequestsTotal, tags)
	observe(HTTPRequestDurationMs, duration, tags)
	set(HTTPResponseSizeBytes, float64(size), labels{"method": method, "endpoint": endpoint})

	if status >= http.StatusBadRequest {
		inc(HTTPErrorsTotal, labels{
			"method":     method,
			"endpoint":   endpoint,
			"status":     code,
			"error_type": pick(status >= http.StatusInternalServerError, "server_error", "client_error"),
		})
	}
}
