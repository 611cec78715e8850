package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	"github.com/hibp-mcp/hibp-mcp/internal/core/engine"
	"github.com/hibp-mcp/hibp-mcp/internal/core/hibp"
	"github.com/hibp-mcp/hibp-mcp/internal/metrics"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/server"
)

func scrape(t *testing.T, client *http.Client, url string) (string, string) {
	t.Helper()

	resp, err := client.Get(url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), resp.Header.Get("Content-Type")
}

func TestMetricsCoverToolTraffic(t *testing.T) {
	observability.InitServerLogger("test", "error", nil)
	initMetricsOrSkip(t)

	upstream := &fakeUpstream{}
	up, upClient := startHTTPServer(t, upstream)

	plan := core.Plans.ResolvePlan(nil, "Pwned 5")
	governor := engine.NewGovernor(plan,
		engine.WithSleep(func(time.Duration) {}),
		engine.WithObserver(func(waited time.Duration) {
			metrics.RecordAdmission(plan.Plan, waited)
		}))

	client := &hibp.Client{
		BaseURL:      up.URL + "/api/v3",
		PasswordsURL: up.URL + "/range",
		APIKey:       "test-key",
		HTTPClient:   upClient,
		Governor:     governor,
		Breaker:      hibp.NewBreaker("hibp-metrics", 5, time.Second, nil),
	}

	ts, httpClient := newTestServer(t, server.Options{
		MCP: server.NewMCPServer("test", client),
	}, nil)

	const calls = 12
	for id := 0; id < calls; id++ {
		tool, args := server.ToolBreaches, map[string]any{"operation": "getAllBreachesForAccount", "account": "test@example.com"}
		switch id % 3 {
		case 1:
			args["account"] = "clean@example.com"
		case 2:
			tool, args = server.ToolPwnedPassword, map[string]any{"password": "password"}
		}
		resp := callTool(t, httpClient, ts.URL, id+1, tool, args)
		require.False(t, resp.Result.IsError, resp.Result.Content[0].Text)
	}

	// one failing call so the error counters have a sample
	resp := callTool(t, httpClient, ts.URL, calls+1, server.ToolPastes, map[string]any{})
	require.True(t, resp.Result.IsError)

	assert.Equal(t, calls/3*2, governor.InWindow())

	body, contentType := scrape(t, httpClient, ts.URL)
	assert.True(t, strings.HasPrefix(contentType, "text/plain"), "content type %q", contentType)

	for _, name := range []string{
		"test_http_requests_total",
		"test_" + metrics.ToolCallsTotal,
		"test_" + metrics.RequestsTotal,
		"test_" + metrics.GovernorAdmissionsTotal,
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `plan="Pwned 5"`)
}

func TestMetricsSamplesAreWellFormed(t *testing.T) {
	observability.InitServerLogger("test", "error", nil)
	initMetricsOrSkip(t)

	ts, client := newTestServer(t, server.Options{}, nil)

	for _, path := range []string{"/health", "/health/live", "/version", "/missing"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	body, _ := scrape(t, client, ts.URL)

	samples := 0
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 2, "sample %q", line)
		samples++
	}
	assert.Positive(t, samples)
	assert.Contains(t, body, "test_"+metrics.ErrorsTotalName)
}

func TestMetricsUnavailableWithoutExporter(t *testing.T) {
	observability.InitServerLogger("test", "error", nil)

	exporter, system := observability.PrometheusExporter, observability.TelemetrySystem
	observability.PrometheusExporter, observability.TelemetrySystem = nil, nil
	t.Cleanup(func() {
		observability.PrometheusExporter, observability.TelemetrySystem = exporter, system
	})

	ts, client := newTestServer(t, server.Options{}, nil)

	resp, err := client.Get(ts.URL + "/health/live")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
