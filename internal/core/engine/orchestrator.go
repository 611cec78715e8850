package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

// DefaultConcurrency bounds in-flight lookups of a batch. The governor still
// paces metered requests; this only limits goroutines waiting on it.
const DefaultConcurrency = 4

// LookupFunc performs one lookup for subject.
type LookupFunc func(ctx context.Context, subject string) (*core.LookupResult, error)

// Orchestrator runs one operation across several subjects. A failed subject
// is recorded on its result and does not abort the others.
type Orchestrator struct {
	Concurrency int
	Clock       func() time.Time
}

// Run looks up each distinct, non-blank subject and returns results in input
// order. The returned error is non-nil only for invalid arguments or when ctx
// ends before the batch completes; the partial batch is returned with it.
func (o *Orchestrator) Run(ctx context.Context, op core.Operation, subjects []string, lookup LookupFunc) (*core.BatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if lookup == nil {
		return nil, errors.New("lookup function is required")
	}

	normalized := normalizeSubjects(subjects)
	if len(normalized) == 0 {
		return nil, apperrors.NewInvalidInputError("at least one subject is required")
	}

	results := make([]*core.LookupResult, len(normalized))

	var g errgroup.Group
	g.SetLimit(o.concurrency())

	for i, subject := range normalized {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = o.failedResult(op, subject, err)
				return nil
			}

			result, err := lookup(ctx, subject)
			switch {
			case err != nil:
				results[i] = o.failedResult(op, subject, err)
			case result == nil:
				results[i] = o.failedResult(op, subject, errors.New("lookup returned no result"))
			default:
				if result.Subject == "" {
					result.Subject = subject
				}
				results[i] = result
			}
			return nil
		})
	}

	_ = g.Wait()

	return core.NewBatchResult(op, results), ctx.Err()
}

func (o *Orchestrator) failedResult(op core.Operation, subject string, err error) *core.LookupResult {
	now := o.now()
	return &core.LookupResult{
		Operation: op,
		Subject:   subject,
		Error:     apperrors.Message(err),
		Provenance: core.Provenance{
			RequestedAt: now,
			ResolvedAt:  now,
			Source:      "orchestrator",
		},
	}
}

func normalizeSubjects(subjects []string) []string {
	seen := make(map[string]struct{}, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		trimmed := strings.TrimSpace(subject)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func (o *Orchestrator) concurrency() int {
	if o != nil && o.Concurrency > 0 {
		return o.Concurrency
	}
	return DefaultConcurrency
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
