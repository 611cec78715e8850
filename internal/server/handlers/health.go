package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
)

// Check statuses
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

const checkTimeout = 5 * time.Second

// HealthResponse is the /health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Plan      string            `json:"plan,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the liveness and readiness probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is a component that can report its health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

// CheckHealth calls f.
func (f CheckFunc) CheckHealth(ctx context.Context) error {
	return f(ctx)
}

// DegradedError marks a component that still serves but is impaired, such
// as an open upstream circuit breaker.
type DegradedError struct {
	Reason string
}

func (e *DegradedError) Error() string {
	return e.Reason
}

// HealthManager owns the registered checks and serves the health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
	plan     string
}

// NewHealthManager returns a manager reporting version and the active
// subscription plan.
func NewHealthManager(version, plan string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
		plan:     plan,
	}
}

// RegisterChecker adds or replaces the check called name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

func (hm *HealthManager) snapshot() map[string]HealthChecker {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	out := make(map[string]HealthChecker, len(hm.checkers))
	for name, c := range hm.checkers {
		out[name] = c
	}
	return out
}

// runHealthChecks runs every check concurrently under ctx.
func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	checkers := hm.snapshot()

	var mu sync.Mutex
	results := make(map[string]string, len(checkers))
	var g errgroup.Group
	for name, checker := range checkers {
		g.Go(func() error {
			status := runCheck(ctx, name, checker)
			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runCheck(ctx context.Context, name string, checker HealthChecker) string {
	if ctx.Err() != nil {
		return StatusTimeout
	}

	started := time.Now()
	err := checker.CheckHealth(ctx)
	metrics.RecordHealthCheck(name, err == nil, time.Since(started))

	var degraded *DegradedError
	switch {
	case err == nil:
		return StatusHealthy
	case stderrors.As(err, &degraded):
		return StatusDegraded
	case ctx.Err() != nil:
		return StatusTimeout
	default:
		return StatusUnhealthy
	}
}

// determineOverallStatus is unhealthy if any check is, degraded if any check
// is degraded or timed out, healthy otherwise.
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := StatusHealthy
	for _, status := range checks {
		switch status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			overall = StatusDegraded
		}
	}
	return overall
}

func (hm *HealthManager) evaluate(r *http.Request) (string, map[string]string) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	checks := hm.runHealthChecks(ctx)
	return hm.determineOverallStatus(checks), checks
}

// HealthHandler serves the aggregate status with every check's result.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status, checks := hm.evaluate(r)
	if status == StatusUnhealthy {
		respondWithError(w, r, unhealthyEnvelope("aggregate health check failed", "", status, checks))
		return
	}

	writeJSON(w, HealthResponse{
		Status:    status,
		Version:   hm.version,
		Plan:      hm.plan,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

// LivenessHandler reports that the process is up. It runs no checks: a
// tripped breaker or a broken cache must not get the process restarted.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ProbeResponse{Status: StatusHealthy, Timestamp: time.Now().UTC()})
}

// ReadinessHandler fails with 503 while any check is unhealthy.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status, checks := hm.evaluate(r)
	if status == StatusUnhealthy {
		respondWithError(w, r, unhealthyEnvelope("readiness probe failed", "ready", status, checks))
		return
	}
	writeJSON(w, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func unhealthyEnvelope(message, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"status": status}
	if probe != "" {
		details["probe"] = probe
	}
	if len(checks) > 0 {
		details["checks"] = checks

		var failing []string
		for name, result := range checks {
			if result != StatusHealthy {
				failing = append(failing, name)
			}
		}
		sort.Strings(failing)
		if len(failing) > 0 {
			details["unhealthy_checks"] = failing
		}
	}

	envelope, _ := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", message).WithContext(details)
	return envelope
}
