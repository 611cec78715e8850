package hibp

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
)

var errBreakerOpen = errors.New("circuit breaker is open")

// passthroughBreaker never trips; used when no breaker is configured.
var passthroughBreaker = &Breaker{}

// Breaker stops calling an upstream that keeps failing at the transport
// level or with 5xx answers. 4xx answers, including 429, never trip it.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker that opens after maxFailures consecutive
// failures and probes again after timeout.
func NewBreaker(name string, maxFailures uint32, timeout time.Duration, logger core.Logger) *Breaker {
	if maxFailures == 0 {
		maxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from.String(), to.String())
			if logger != nil {
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			}
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the breaker is open. A 5xx response is returned
// together with its serverStatusError.
func (b *Breaker) Execute(fn func() (*upstreamResponse, error)) (*upstreamResponse, error) {
	if b == nil || b.cb == nil {
		return fn()
	}

	var resp *upstreamResponse
	_, err := b.cb.Execute(func() (interface{}, error) {
		var callErr error
		resp, callErr = fn()
		return nil, callErr
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errBreakerOpen
	}
	return resp, err
}

// State reports the breaker state ("closed", "open", "half-open").
func (b *Breaker) State() string {
	if b == nil || b.cb == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}
