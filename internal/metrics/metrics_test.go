package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = original
	})

	return collector
}

func TestRecordAdmission(t *testing.T) {
	collector := setupTelemetry(t)

	RecordAdmission("Pwned 1", 0)
	assert.Greater(t, collector.CountMetricsByName(GovernorAdmissionsTotal), 0)
	assert.Equal(t, 0, collector.CountMetricsByName(GovernorWaitMs),
		"immediate admissions should not record a wait")

	RecordAdmission("Pwned 1", 1500*time.Millisecond)
	assert.Greater(t, collector.CountMetricsByName(GovernorWaitMs), 0)
}

func TestRecordRequest(t *testing.T) {
	collector := setupTelemetry(t)

	RecordRequest("getBreachByName", 200, 20*time.Millisecond)

	assert.Greater(t, collector.CountMetricsByName(RequestsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RequestDurationMs), 0)
}

func TestRecordCacheToolAndBreaker(t *testing.T) {
	collector := setupTelemetry(t)

	RecordCacheLookup("getDataClasses", true)
	RecordToolCall("HIBP-Breaches", false)
	RecordBreakerTransition("hibp-api", "closed", "open")
	RecordError("RATE_LIMITED", 429)
	RecordErrorByEndpoint("HIBP-Pastes", "RATE_LIMITED")
	RecordHealthCheck("upstream", true, time.Millisecond)

	assert.Greater(t, collector.CountMetricsByName(CacheLookupsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(ToolCallsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(BreakerTransitionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsTotalName), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpointName), 0)
	assert.Greater(t, collector.CountMetricsByName(HealthCheckTotal), 0)
}

func TestRecordersNoopWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordAdmission("Pwned 1", time.Second)
		RecordRequest("getDataClasses", 200, time.Millisecond)
		RecordCacheLookup("getDataClasses", false)
		RecordToolCall("HIBP-Pastes", true)
		SetServerStartTime(time.Now().Unix())
	})
}

func TestRecordServerMetrics(t *testing.T) {
	collector := setupTelemetry(t)

	RecordHealthCheck("cache_store", false, 3*time.Millisecond)
	SetServerStartTime(time.Now().Unix())
	RecordPanic()

	assert.Greater(t, collector.CountMetricsByName(HealthCheckTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(HealthCheckDuration), 0)
	assert.Greater(t, collector.CountMetricsByName(ServerStartTime), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotalName), 0)
}

func TestPick(t *testing.T) {
	assert.Equal(t, "hit", pick(true, "hit", "miss"))
	assert.Equal(t, "miss", pick(false, "hit", "miss"))
}
