package errors

import (
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

// HTTPErrorDetail is the body of an error response.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse wraps HTTPErrorDetail under "error".
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

// RespondWithError writes err as a JSON error response.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	RespondWithEnvelope(w, r, EnsureEnvelope(err))
}

// RespondWithEnvelope writes envelope with the status its code maps to, and
// logs and counts it.
func RespondWithEnvelope(w http.ResponseWriter, r *http.Request, envelope *errors.ErrorEnvelope) {
	if w == nil {
		return
	}

	endpoint := ""
	if r != nil {
		envelope = EnsureCorrelationID(envelope, r.Context())
		endpoint = r.URL.Path
	} else {
		envelope = EnsureCorrelationID(envelope, nil)
	}
	status := HTTPStatusFromCode(envelope.Code)

	LogError(envelope, status)
	metrics.RecordError(envelope.Code, status)
	if endpoint != "" {
		metrics.RecordErrorByEndpoint(endpoint, envelope.Code)
	}

	body := HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		RequestID: envelope.CorrelationID,
	}}
	if len(envelope.Context) > 0 {
		body.Error.Details = envelope.Context
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// LogError logs envelope on the server logger at a level matching its
// severity. It is silent until the server logger exists.
func LogError(envelope *errors.ErrorEnvelope, statusCode int) {
	logger := observability.ServerLogger
	if logger == nil || envelope == nil {
		return
	}

	fields := make([]zap.Field, 0, len(envelope.Context)+4)
	fields = append(fields,
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", statusCode))
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	if envelope.CorrelationID != "" {
		fields = append(fields, zap.String("request_id", envelope.CorrelationID))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch envelope.Severity {
	case errors.SeverityCritical, errors.SeverityHigh:
		logger.Error(envelope.Message, fields...)
	case errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
