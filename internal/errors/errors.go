// Package errors builds gofulmen error envelopes for the adapter and maps
// them onto HTTP responses and tool errors.
package errors

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"

	"github.com/hibp-mcp/hibp-mcp/internal/server/middleware"
)

// Error codes
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeExternalService  = "EXTERNAL_SERVICE_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeDatabase         = "DATABASE_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

var codeStatus = map[string]int{
	CodeInvalidInput:     http.StatusBadRequest,
	CodeNotFound:         http.StatusNotFound,
	CodeMethodNotAllowed: http.StatusMethodNotAllowed,
	CodeUnauthorized:     http.StatusUnauthorized,
	CodeRateLimited:      http.StatusTooManyRequests,
	CodeExternalService:  http.StatusBadGateway,
	CodeUnavailable:      http.StatusServiceUnavailable,
}

// HTTPStatusFromCode maps an error code to its HTTP status; unknown codes
// are 500.
func HTTPStatusFromCode(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func NewInvalidInputError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInvalidInput, message)
}

func NewNotFoundError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeNotFound, message)
}

func NewMethodNotAllowedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeMethodNotAllowed, message)
}

// NewUnauthorizedError reports a rejected HIBP API key.
func NewUnauthorizedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnauthorized, message)
}

// NewRateLimitedError reports an upstream 429.
func NewRateLimitedError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeRateLimited, message)
}

func NewInternalError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeInternal, message)
}

func NewExternalServiceError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeExternalService, message)
}

func NewUnavailableError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeUnavailable, message)
}

func NewConfigInvalidError(message string) *errors.ErrorEnvelope {
	return errors.NewErrorEnvelope(CodeConfigInvalid, message)
}

func WrapExternalService(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeExternalService, err, message)
}

func WrapDatabaseError(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeDatabase, err, message)
}

func WrapInternal(ctx context.Context, err error, message string) *errors.ErrorEnvelope {
	return wrap(ctx, CodeInternal, err, message)
}

// wrap builds a code envelope correlated with ctx's request ID. The cause's
// text is kept under the wrapped_error detail.
func wrap(ctx context.Context, code string, err error, message string) *errors.ErrorEnvelope {
	id := correlationID(ctx)
	envelope := errors.NewErrorEnvelope(code, message).
		WithCorrelationID(id).
		WithTraceID(id)
	if err == nil {
		return envelope
	}
	return WithDetails(envelope, map[string]interface{}{"wrapped_error": err.Error()})
}

// WithDetails merges details into the envelope context. The original
// envelope is returned if the merge fails.
func WithDetails(envelope *errors.ErrorEnvelope, details map[string]interface{}) *errors.ErrorEnvelope {
	if envelope == nil || len(details) == 0 {
		return envelope
	}
	if updated, err := envelope.WithContext(details); err == nil {
		return updated
	}
	return envelope
}

// correlationID is ctx's request ID, or a fresh UUID.
func correlationID(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// AsEnvelope reports whether err is, or wraps, an ErrorEnvelope.
func AsEnvelope(err error) (*errors.ErrorEnvelope, bool) {
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) && envelope != nil {
		return envelope, true
	}
	return nil, false
}

// Message is the caller-facing text of err: the envelope message when err
// carries one, err.Error() otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if envelope, ok := AsEnvelope(err); ok {
		return envelope.Message
	}
	return err.Error()
}

// CodeOf returns the envelope code of err, or INTERNAL_ERROR.
func CodeOf(err error) string {
	if envelope, ok := AsEnvelope(err); ok {
		return envelope.Code
	}
	return CodeInternal
}

// EnsureEnvelope returns err's envelope, or wraps a plain error (or nil) in
// an INTERNAL_ERROR one.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if envelope, ok := AsEnvelope(err); ok {
		return envelope
	}

	message, severity, details := "unexpected error", errors.SeverityHigh, map[string]interface{}(nil)
	if err == nil {
		message, severity = "unexpected nil error", errors.SeverityCritical
	} else {
		details = map[string]interface{}{"wrapped_error": err.Error()}
	}

	envelope := WithDetails(errors.NewErrorEnvelope(CodeInternal, message), details)
	if withSeverity, serr := envelope.WithSeverity(severity); serr == nil {
		envelope = withSeverity
	}
	return envelope
}

// EnsureCorrelationID sets a correlation ID on envelope when it has none,
// preferring ctx's request ID.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return envelope.WithCorrelationID(id)
		}
	}
	return envelope.WithCorrelationID("fallback-" + errors.GenerateCorrelationID())
}
