package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/hibp-mcp/hibp-mcp/internal/config"
	apperrors "github.com/hibp-mcp/hibp-mcp/internal/errors"
	"github.com/hibp-mcp/hibp-mcp/internal/observability"
)

const prometheusContentType = "text/plain; version=0.0.4"

var metricsTransport http.RoundTripper = &http.Transport{
	ResponseHeaderTimeout: 5 * time.Second,
	MaxIdleConns:          2,
}

// exporterTarget returns the loopback scrape URL of the Prometheus exporter.
func exporterTarget() string {
	port := observability.GetMetricsPort()
	if port == 0 {
		port = 9090
		if cfg := config.GetConfig(); cfg != nil && cfg.Metrics.Port != 0 {
			port = cfg.Metrics.Port
		}
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}

// MetricsHandler serves the exporter's scrape output on the main listener.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewUnavailableError("Metrics exporter not initialized"))
		return
	}

	host := exporterTarget()
	metricsURL := "http://" + host + "/metrics"

	proxy := &httputil.ReverseProxy{
		Transport: metricsTransport,
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = "http"
			pr.Out.URL.Host = host
			pr.Out.URL.Path = "/metrics"
			pr.Out.URL.RawQuery = ""
			pr.Out.Host = host
		},
		ModifyResponse: func(resp *http.Response) error {
			if resp.Header.Get("Content-Type") == "" {
				resp.Header.Set("Content-Type", prometheusContentType)
			}
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			apperrors.RespondWithError(w, r, apperrors.WithDetails(
				apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"),
				map[string]interface{}{"metrics_url": metricsURL}))
		},
	}
	proxy.ServeHTTP(w, r)
}
