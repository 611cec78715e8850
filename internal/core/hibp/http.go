package hibp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

// maxBodyBytes bounds how much of an upstream body is read into memory.
const maxBodyBytes = 16 << 20

type upstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// serverStatusError marks a 5xx answer so the breaker counts it as a failure.
type serverStatusError struct {
	status int
}

func (e *serverStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}

func isServerStatus(err error) bool {
	var statusErr *serverStatusError
	return errors.As(err, &statusErr)
}

func readResponse(resp *http.Response) (*upstreamResponse, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	out := &upstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return out, &serverStatusError{status: resp.StatusCode}
	}
	return out, nil
}

// retryAfter returns the raw Retry-After header, or "Unknown".
func retryAfter(resp *upstreamResponse) string {
	if resp == nil || resp.Header == nil {
		return "Unknown"
	}
	if value := strings.TrimSpace(resp.Header.Get("Retry-After")); value != "" {
		return value
	}
	return "Unknown"
}

// statusError converts a non-2xx, non-404 answer into an error envelope.
func statusError(resp *upstreamResponse, reqURL string) error {
	details := map[string]interface{}{
		"url":         reqURL,
		"status_code": resp.StatusCode,
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		wait := retryAfter(resp)
		details["retry_after"] = wait
		return apperrors.WithDetails(
			apperrors.NewRateLimitedError(fmt.Sprintf("Rate limit exceeded. Try again in %s seconds.", wait)),
			details,
		)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.WithDetails(
			apperrors.NewUnauthorizedError(apiErrorMessage(resp)),
			details,
		)
	default:
		return apperrors.WithDetails(
			apperrors.NewExternalServiceError(apiErrorMessage(resp)),
			details,
		)
	}
}

func apiErrorMessage(resp *upstreamResponse) string {
	return fmt.Sprintf("HIBP API error (%d): %s", resp.StatusCode, string(resp.Body))
}

func transportError(ctx context.Context, err error, reqURL string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, errBreakerOpen) {
		return apperrors.WithDetails(
			apperrors.NewUnavailableError("HIBP API temporarily unavailable: "+err.Error()),
			map[string]interface{}{"url": reqURL},
		)
	}
	return apperrors.WrapExternalService(ctx, err, fmt.Sprintf("HIBP API request failed: %v", err))
}
