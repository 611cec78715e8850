package hibp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hibp-mcp/hibp-mcp/internal/core"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
)

type countingAdmitter struct {
	calls atomic.Int32
}

func (a *countingAdmitter) Admit() {
	a.calls.Add(1)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]core.CachedResponse
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]core.CachedResponse)}
}

func (m *memoryCache) GetCachedResponse(ctx context.Context, op core.Operation, key string) (*core.CachedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[string(op)+"|"+key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (m *memoryCache) SetCachedResponse(ctx context.Context, op core.Operation, key string, resp core.CachedResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[string(op)+"|"+key] = resp
	return nil
}

func newTestClient(server *httptest.Server, admitter Admitter) *Client {
	return &Client{
		BaseURL:      server.URL + "/api/v3",
		PasswordsURL: server.URL + "/range",
		APIKey:       "test-key",
		HTTPClient:   server.Client(),
		Governor:     admitter,
	}
}

func boolPtr(v bool) *bool {
	return &v
}

func TestBreachesForAccountFound(t *testing.T) {
	var seen *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Name":"Adobe"}]`))
	}))
	defer server.Close()

	admitter := &countingAdmitter{}
	client := newTestClient(server, admitter)

	result, err := client.Breaches(context.Background(), BreachQuery{
		Operation:         core.OperationBreachesForAccount,
		Account:           "test@example.com",
		Domain:            "adobe.com",
		IncludeUnverified: boolPtr(true),
		TruncateResponse:  boolPtr(false),
	})
	require.NoError(t, err)

	require.Equal(t, int32(1), admitter.calls.Load())
	require.Equal(t, "/api/v3/breachedaccount/test@example.com", seen.URL.Path)
	require.Equal(t, "adobe.com", seen.URL.Query().Get("domain"))
	require.Equal(t, "true", seen.URL.Query().Get("includeUnverified"))
	require.Equal(t, "false", seen.URL.Query().Get("truncateResponse"))
	require.Equal(t, "test-key", seen.Header.Get("hibp-api-key"))
	require.Equal(t, "HIBP-MCP-Server", seen.Header.Get("User-Agent"))

	require.True(t, result.Found)
	require.Equal(t, "test@example.com", result.Subject)
	require.Equal(t, "Result for getAllBreachesForAccount:\n\n[\n  {\n    \"Name\": \"Adobe\"\n  }\n]", Text(result))
}

func TestBreachesForAccountNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server, &countingAdmitter{})

	result, err := client.Breaches(context.Background(), BreachQuery{
		Operation: core.OperationBreachesForAccount,
		Account:   "clean@example.com",
	})
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, http.StatusNotFound, result.StatusCode)
	require.Equal(t, "Good news! No breaches found for account: clean@example.com", Text(result))
}

func TestBreachByNameNotFoundIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server, &countingAdmitter{})

	_, err := client.Breaches(context.Background(), BreachQuery{
		Operation: core.OperationBreachByName,
		Name:      "Nope",
	})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	require.Equal(t, "Resource not found: "+server.URL+"/api/v3/breach/Nope", apperrors.Message(err))
}

func TestBreachesRateLimited(t *testing.T) {
	cases := map[string]string{
		"2": "Rate limit exceeded. Try again in 2 seconds.",
		"":  "Rate limit exceeded. Try again in Unknown seconds.",
	}

	for header, want := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if header != "" {
				w.Header().Set("Retry-After", header)
			}
			w.WriteHeader(http.StatusTooManyRequests)
		}))

		client := newTestClient(server, &countingAdmitter{})
		_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
		server.Close()

		require.Error(t, err)
		require.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))
		require.Equal(t, want, apperrors.Message(err))
	}
}

func TestBreachesUpstreamErrors(t *testing.T) {
	cases := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, apperrors.CodeExternalService},
		{http.StatusUnauthorized, apperrors.CodeUnauthorized},
		{http.StatusInternalServerError, apperrors.CodeExternalService},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte("boom"))
		}))

		client := newTestClient(server, &countingAdmitter{})
		_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationBreachedSites})
		server.Close()

		require.Error(t, err)
		require.Equal(t, tc.code, apperrors.CodeOf(err))
		require.Equal(t, fmt.Sprintf("HIBP API error (%d): boom", tc.status), apperrors.Message(err))
	}
}

func TestBreachesMissingAPIKey(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	admitter := &countingAdmitter{}
	client := newTestClient(server, admitter)
	client.APIKey = "  "

	_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
	require.Error(t, err)
	require.Equal(t, "Missing required environment variable: HIBP_API_KEY", apperrors.Message(err))
	require.Equal(t, apperrors.CodeConfigInvalid, apperrors.CodeOf(err))

	_, err = client.Pastes(context.Background(), "a@example.com")
	require.Error(t, err)

	require.Zero(t, admitter.calls.Load())
	require.Zero(t, hits.Load())
}

func TestBreachesRequiredParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	admitter := &countingAdmitter{}
	client := newTestClient(server, admitter)

	_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationBreachesForAccount})
	require.Error(t, err)
	require.Equal(t, "Account parameter is required for getAllBreachesForAccount operation", apperrors.Message(err))
	require.Equal(t, apperrors.CodeInvalidInput, apperrors.CodeOf(err))

	_, err = client.Breaches(context.Background(), BreachQuery{Operation: core.OperationBreachByName})
	require.Error(t, err)
	require.Equal(t, "Name parameter is required for getBreachByName operation", apperrors.Message(err))

	_, err = client.Breaches(context.Background(), BreachQuery{Operation: "getEverything"})
	require.Error(t, err)
	require.Equal(t, "Unsupported operation: getEverything", apperrors.Message(err))

	require.Zero(t, admitter.calls.Load())
}

func TestBreachesEmptyBodyRendersEmptyObject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server, &countingAdmitter{})

	result, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
	require.NoError(t, err)
	require.Equal(t, "Result for getDataClasses:\n\n{}", Text(result))
}

func TestBreachesInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer server.Close()

	client := newTestClient(server, &countingAdmitter{})

	_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeExternalService, apperrors.CodeOf(err))
}

func TestPastesFoundAndNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/pasteaccount/clean@example.com" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"Source":"Pastebin","Id":"abc"}]`))
	}))
	defer server.Close()

	admitter := &countingAdmitter{}
	client := newTestClient(server, admitter)

	result, err := client.Pastes(context.Background(), "leaked@example.com")
	require.NoError(t, err)
	require.Equal(t, "Pastes containing the account leaked@example.com:\n\n[\n  {\n    \"Source\": \"Pastebin\",\n    \"Id\": \"abc\"\n  }\n]", Text(result))

	result, err = client.Pastes(context.Background(), "clean@example.com")
	require.NoError(t, err)
	require.Equal(t, "Good news! No pastes found for account: clean@example.com", Text(result))

	require.Equal(t, int32(2), admitter.calls.Load())
}

func TestPasswordExposureFound(t *testing.T) {
	var seen *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		_, _ = w.Write([]byte("0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n1E4C9B93F3F0682250B6CF8331B7EE68FD8:3861493\r\n"))
	}))
	defer server.Close()

	admitter := &countingAdmitter{}
	client := newTestClient(server, admitter)
	client.APIKey = ""

	result, err := client.PasswordExposure(context.Background(), "password")
	require.NoError(t, err)

	require.Equal(t, "/range/5BAA6", seen.URL.Path)
	require.Equal(t, "true", seen.Header.Get("Add-Padding"))
	require.Empty(t, seen.Header.Get("hibp-api-key"))
	require.Zero(t, admitter.calls.Load(), "range API is unmetered")

	require.True(t, result.Found)
	require.Equal(t, int64(3861493), result.Count)
	require.Equal(t, "Password found in 3,861,493 data breaches!", Text(result))
}

func TestPasswordExposurePaddingIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1E4C9B93F3F0682250B6CF8331B7EE68FD8:0\r\nFFFFF93F3F0682250B6CF8331B7EE68FD8F:0"))
	}))
	defer server.Close()

	client := newTestClient(server, nil)

	result, err := client.PasswordExposure(context.Background(), "password")
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Equal(t, "Good news! Password wasn't found in any known data breaches.", Text(result))
}

func TestPasswordExposureUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("The hash prefix was not in a valid format"))
	}))
	defer server.Close()

	client := newTestClient(server, nil)

	_, err := client.PasswordExposure(context.Background(), "password")
	require.Error(t, err)
	require.Equal(t, "HIBP API error (400): The hash prefix was not in a valid format", apperrors.Message(err))
}

func TestCacheServesCatalogButNotAccounts(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`["Email addresses","Passwords"]`))
	}))
	defer server.Close()

	admitter := &countingAdmitter{}
	client := newTestClient(server, admitter)
	client.Cache = newMemoryCache()
	client.UseCache = true

	first, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
	require.NoError(t, err)
	require.False(t, first.Provenance.FromCache)

	second, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
	require.NoError(t, err)
	require.True(t, second.Provenance.FromCache)
	require.NotNil(t, second.Provenance.CacheExpiresAt)
	require.Equal(t, Text(first), Text(second))

	require.Equal(t, int32(1), hits.Load())
	require.Equal(t, int32(1), admitter.calls.Load(), "cache hits skip the governor")

	for i := 0; i < 2; i++ {
		_, err := client.Breaches(context.Background(), BreachQuery{
			Operation: core.OperationBreachesForAccount,
			Account:   "a@example.com",
		})
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), hits.Load())
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	zapCore, logs := observer.New(zap.WarnLevel)
	client := newTestClient(server, &countingAdmitter{})
	client.Breaker = NewBreaker("hibp-test", 2, time.Minute, zap.New(zapCore))

	for i := 0; i < 2; i++ {
		_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
		require.Error(t, err)
		require.Equal(t, apperrors.CodeExternalService, apperrors.CodeOf(err))
	}
	require.Equal(t, "open", client.Breaker.State())

	_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
	require.Error(t, err)
	require.Equal(t, apperrors.CodeUnavailable, apperrors.CodeOf(err))
	require.Equal(t, int32(2), hits.Load())
	require.Equal(t, 1, logs.FilterMessage("Circuit breaker state changed").Len())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server, &countingAdmitter{})
	client.Breaker = NewBreaker("hibp-test", 1, time.Minute, nil)

	for i := 0; i < 3; i++ {
		_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationDataClasses})
		require.Equal(t, apperrors.CodeRateLimited, apperrors.CodeOf(err))
	}
	require.Equal(t, "closed", client.Breaker.State())
}

func TestCanceledContextAfterAdmission(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server, &countingAdmitter{})
	_, err := client.Breaches(ctx, BreachQuery{Operation: core.OperationDataClasses})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, hits.Load())
}

func TestRequestLogsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	zapCore, logs := observer.New(zap.InfoLevel)
	client := newTestClient(server, &countingAdmitter{})
	client.Logger = zap.New(zapCore)

	_, err := client.Breaches(context.Background(), BreachQuery{Operation: core.OperationBreachedSites, Domain: "adobe.com"})
	require.NoError(t, err)

	entries := logs.FilterMessage("Making HIBP API request").All()
	require.Len(t, entries, 1)
	require.Equal(t, server.URL+"/api/v3/breaches?domain=adobe.com", entries[0].ContextMap()["url"])
}
