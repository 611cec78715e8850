package core

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultPlan is the lowest HIBP subscription tier and the fallback for
// unrecognized plan names.
const DefaultPlan = "Pwned 1"

// RateLimitConfig binds a subscription plan to its request quota.
type RateLimitConfig struct {
	RequestsPerMinute int    `json:"requests_per_minute"`
	Plan              string `json:"plan"`
}

// PlanRegistry maps plan names to their rate limit configuration.
type PlanRegistry map[string]RateLimitConfig

// Plans lists the HIBP subscription tiers.
var Plans = PlanRegistry{
	"Pwned 1": {RequestsPerMinute: 10, Plan: "Pwned 1"},
	"Pwned 2": {RequestsPerMinute: 50, Plan: "Pwned 2"},
	"Pwned 3": {RequestsPerMinute: 100, Plan: "Pwned 3"},
	"Pwned 4": {RequestsPerMinute: 500, Plan: "Pwned 4"},
	"Pwned 5": {RequestsPerMinute: 1000, Plan: "Pwned 5"},
}

// Logger is the logging surface used by core components. Both the gofulmen
// logger and *zap.Logger satisfy it.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// Resolve returns the configuration for name. The second return value is
// false when name is unknown and the default plan was substituted.
func (r PlanRegistry) Resolve(name string) (RateLimitConfig, bool) {
	needle := strings.TrimSpace(name)
	if needle == "" {
		return r.fallback(), true
	}

	if cfg, ok := r[needle]; ok {
		return cfg, true
	}

	return r.fallback(), false
}

// ResolvePlan resolves name and logs a warning when the default plan had to
// be applied.
func (r PlanRegistry) ResolvePlan(logger Logger, name string) RateLimitConfig {
	cfg, known := r.Resolve(name)
	if !known && logger != nil {
		logger.Warn("Unknown subscription plan, defaulting to "+cfg.Plan,
			zap.String("requested_plan", name),
			zap.String("plan", cfg.Plan),
			zap.Int("requests_per_minute", cfg.RequestsPerMinute))
	}
	return cfg
}

// Names returns plan names ordered by quota, lowest first.
func (r PlanRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		a, b := r[names[i]], r[names[j]]
		if a.RequestsPerMinute != b.RequestsPerMinute {
			return a.RequestsPerMinute < b.RequestsPerMinute
		}
		return names[i] < names[j]
	})
	return names
}

func (r PlanRegistry) fallback() RateLimitConfig {
	if cfg, ok := r[DefaultPlan]; ok {
		return cfg
	}
	return RateLimitConfig{RequestsPerMinute: 10, Plan: DefaultPlan}
}
