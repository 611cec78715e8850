package integration

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hibp-mcp/hibp-mcp/internal/observability"
	"github.com/hibp-mcp/hibp-mcp/internal/server"
)

func cleanupMetrics(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { _ = observability.StopMetrics() })
}

var sandboxDenials = []string{"permission denied", "operation not permitted"}

// skipIfSandboxed skips t when err is the OS refusing a socket, and fails it
// for any other error.
func skipIfSandboxed(t *testing.T, what string, err error) {
	t.Helper()
	if err == nil {
		return
	}
	denied := errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
	for _, fragment := range sandboxDenials {
		denied = denied || strings.Contains(strings.ToLower(err.Error()), fragment)
	}
	if denied {
		t.Skipf("skipping %s: %v", what, err)
	}
	require.NoError(t, err)
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	skipIfSandboxed(t, "metrics exporter", observability.InitMetrics("test", 0))
	cleanupMetrics(t)
}

func listenOrSkip(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	skipIfSandboxed(t, "loopback listener", err)
	return listener
}

func startHTTPServer(t *testing.T, handler http.Handler) (*httptest.Server, *http.Client) {
	t.Helper()
	ts := &httptest.Server{
		Listener: listenOrSkip(t),
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func newTestServer(t *testing.T, opts server.Options, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()
	opts.Host = "127.0.0.1"
	srv := server.New(opts)
	if setup != nil {
		if mux, ok := srv.Handler().(*chi.Mux); ok {
			setup(mux)
		}
	}
	return startHTTPServer(t, srv.Handler())
}
