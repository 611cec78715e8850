package observability

import (
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

// DefaultMetricsNamespace prefixes every exported metric.
const DefaultMetricsNamespace = "hibp_mcp"

// fallbackMetricsPort is reported when the exporter's bound address cannot
// be parsed.
const fallbackMetricsPort = 9090

var (
	// TelemetrySystem receives every recorded metric. Recorders are no-ops
	// while it is nil.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint the HTTP transport proxies.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on port (0 picks a free one) and
// routes telemetry to it.
func InitMetrics(namespace string, port int) error {
	if port < 0 {
		port = 0
	}
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	exporter := exporters.NewPrometheusExporter(namespace, net.JoinHostPort("", strconv.Itoa(port)))
	if err := exporter.Start(); err != nil {
		return err
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	metricsPort = boundPort(exporter.GetAddr(), port)
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// StopMetrics shuts the exporter down and disables recording.
func StopMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the port the exporter listens on.
func GetMetricsPort() int {
	return metricsPort
}

func boundPort(addr string, requested int) int {
	if _, p, err := net.SplitHostPort(addr); err == nil {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if requested == 0 {
		return fallbackMetricsPort
	}
	return requested
}
