package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

type stubLookup struct {
	mu   sync.Mutex
	seen []string
}

func (s *stubLookup) lookup(ctx context.Context, subject string) (*core.LookupResult, error) {
	s.mu.Lock()
	s.seen = append(s.seen, subject)
	s.mu.Unlock()

	switch subject {
	case "limited@example.com":
		return nil, apperrors.NewRateLimitedError("Rate limit exceeded. Try again in 2 seconds.")
	case "empty@example.com":
		return nil, nil
	case "pwned@example.com":
		return &core.LookupResult{Operation: core.OperationBreachesForAccount, Subject: subject, Found: true}, nil
	default:
		return &core.LookupResult{Operation: core.OperationBreachesForAccount}, nil
	}
}

func TestOrchestratorRunPreservesOrderAndRecordsFailures(t *testing.T) {
	stub := &stubLookup{}
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	orchestrator := &Orchestrator{Concurrency: 2, Clock: func() time.Time { return fixed }}

	batch, err := orchestrator.Run(context.Background(), core.OperationBreachesForAccount, []string{
		" pwned@example.com ",
		"",
		"clean@example.com",
		"limited@example.com",
		"pwned@example.com",
		"empty@example.com",
	}, stub.lookup)
	require.NoError(t, err)

	require.Len(t, batch.Results, 4)
	assert.Equal(t, 4, batch.Total)
	assert.Equal(t, 1, batch.Found)
	assert.Equal(t, 2, batch.Failed)
	assert.Len(t, stub.seen, 4)

	assert.Equal(t, "pwned@example.com", batch.Results[0].Subject)
	assert.True(t, batch.Results[0].Found)

	assert.Equal(t, "clean@example.com", batch.Results[1].Subject)
	assert.False(t, batch.Results[1].Found)

	limited := batch.Results[2]
	assert.Equal(t, "limited@example.com", limited.Subject)
	assert.Equal(t, "Rate limit exceeded. Try again in 2 seconds.", limited.Error)
	assert.Equal(t, "orchestrator", limited.Provenance.Source)
	assert.Equal(t, fixed, limited.Provenance.RequestedAt)

	assert.Equal(t, "lookup returned no result", batch.Results[3].Error)
}

func TestOrchestratorRunRequiresSubjects(t *testing.T) {
	orchestrator := &Orchestrator{}

	_, err := orchestrator.Run(context.Background(), core.OperationPastesForAccount, []string{" ", ""}, (&stubLookup{}).lookup)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))

	_, err = orchestrator.Run(context.Background(), core.OperationPastesForAccount, []string{"a"}, nil)
	require.Error(t, err)
}

func TestOrchestratorRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	lookup := func(ctx context.Context, subject string) (*core.LookupResult, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &core.LookupResult{Operation: core.OperationPasswordRange}, nil
	}

	subjects := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	batch, err := (&Orchestrator{Concurrency: 2}).Run(context.Background(), core.OperationPasswordRange, subjects, lookup)
	require.NoError(t, err)
	assert.Equal(t, len(subjects), batch.Total)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestOrchestratorRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubLookup{}
	batch, err := (&Orchestrator{}).Run(ctx, core.OperationPastesForAccount, []string{"a@example.com", "b@example.com"}, stub.lookup)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	assert.Equal(t, 2, batch.Failed)
	assert.Empty(t, stub.seen)
}
