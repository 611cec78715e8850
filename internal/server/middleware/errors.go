package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope. The
// response body matches the shape written by the errors package, which
// cannot be imported here.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := GetRequestID(r.Context())
			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", "internal server error").
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic()
			observability.Logger().Error("Recovered from panic",
				zap.String("request_id", requestID),
				zap.String("panic", fmt.Sprint(rec)),
				zap.ByteString("stack_trace", debug.Stack()))

			writeEnvelope(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

type envelopeBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func writeEnvelope(w http.ResponseWriter, envelope *errors.ErrorEnvelope, status int) {
	var body envelopeBody
	body.Error.Code = envelope.Code
	body.Error.Message = envelope.Message
	body.Error.RequestID = envelope.CorrelationID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
