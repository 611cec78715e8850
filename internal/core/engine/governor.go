package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
)

// Window is the trailing interval over which admissions are counted.
const Window = time.Minute

// Governor paces outbound requests so that no more than the plan's
// RequestsPerMinute are admitted in any trailing Window. Requests are never
// rejected; Admit blocks until a slot frees up.
type Governor struct {
	mu     sync.Mutex
	config core.RateLimitConfig

	// ring buffer of admission instants, oldest at head
	stamps []time.Time
	head   int
	size   int
	gen    uint64

	clock   func() time.Time
	sleep   func(time.Duration)
	logger  core.Logger
	observe func(waited time.Duration)
}

// GovernorOption customizes a Governor.
type GovernorOption func(*Governor)

// WithClock overrides the wall clock.
func WithClock(clock func() time.Time) GovernorOption {
	return func(g *Governor) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithSleep overrides the suspend primitive used while the window is full.
func WithSleep(sleep func(time.Duration)) GovernorOption {
	return func(g *Governor) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithLogger sets the logger for initialization and wait notices.
func WithLogger(logger core.Logger) GovernorOption {
	return func(g *Governor) {
		g.logger = logger
	}
}

// WithObserver registers a callback invoked after every admission with the
// total time the caller was suspended.
func WithObserver(observe func(waited time.Duration)) GovernorOption {
	return func(g *Governor) {
		g.observe = observe
	}
}

// NewGovernor creates a governor bound to cfg.
func NewGovernor(cfg core.RateLimitConfig, opts ...GovernorOption) *Governor {
	if cfg.RequestsPerMinute < 1 {
		cfg.RequestsPerMinute = 1
	}

	g := &Governor{
		config: cfg,
		stamps: make([]time.Time, cfg.RequestsPerMinute),
		clock:  time.Now,
		sleep:  time.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.logger != nil {
		g.logger.Info("Rate limiter initialized",
			zap.String("plan", cfg.Plan),
			zap.Int("requests_per_minute", cfg.RequestsPerMinute))
	}

	return g
}

// Config returns the bound rate limit configuration.
func (g *Governor) Config() core.RateLimitConfig {
	return g.config
}

// Admit blocks until one more request fits in the trailing window, then
// records it. It never fails.
func (g *Governor) Admit() {
	var waited time.Duration

	g.mu.Lock()
	for {
		now := g.clock()
		g.pruneLocked(now)

		if g.size < g.config.RequestsPerMinute {
			g.pushLocked(now)
			break
		}

		wait := g.stamps[g.head].Add(Window).Sub(now)
		if wait < 0 {
			wait = 0
		}
		gen := g.gen
		g.mu.Unlock()

		if g.logger != nil {
			g.logger.Info("Rate limit reached, waiting before next request",
				zap.Duration("wait", wait),
				zap.Int64("wait_ms", wait.Milliseconds()),
				zap.String("plan", g.config.Plan))
		}
		if wait > 0 {
			g.sleep(wait)
		}
		waited += wait

		g.mu.Lock()
		now = g.clock()
		g.pruneLocked(now)

		// Another admitter claimed the freed slot while we slept.
		if g.gen != gen && g.size >= g.config.RequestsPerMinute {
			continue
		}

		g.pushLocked(now)
		break
	}
	g.mu.Unlock()

	if g.observe != nil {
		g.observe(waited)
	}
}

// InWindow reports how many admissions fall inside the trailing window.
func (g *Governor) InWindow() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pruneLocked(g.clock())
	return g.size
}

// pruneLocked drops admissions at least one Window older than now.
func (g *Governor) pruneLocked(now time.Time) {
	cutoff := now.Add(-Window)
	for g.size > 0 && !g.stamps[g.head].After(cutoff) {
		g.stamps[g.head] = time.Time{}
		g.head = (g.head + 1) % len(g.stamps)
		g.size--
	}
}

func (g *Governor) pushLocked(at time.Time) {
	if g.size == len(g.stamps) {
		// only reachable when the clock did not advance across a wait
		g.head = (g.head + 1) % len(g.stamps)
		g.size--
	}
	g.stamps[(g.head+g.size)%len(g.stamps)] = at
	g.size++
	g.gen++
}
