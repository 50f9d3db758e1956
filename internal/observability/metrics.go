package observability

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

var (
	// TelemetrySystem receives every metric; nil disables emission.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the scrape endpoint that /metrics proxies.
	PrometheusExporter *exporters.PrometheusExporter

	metricsPort int
)

// InitMetrics starts a Prometheus exporter on the loopback interface and
// installs a telemetry system emitting to it. Port 0 picks a free port;
// metric names are prefixed with namespace.
func InitMetrics(namespace string, port int) error {
	if port < 0 {
		port = 0
	}

	exporter := exporters.NewPrometheusExporter(namespace, fmt.Sprintf("127.0.0.1:%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return fmt.Errorf("telemetry system: %w", err)
	}

	metricsPort = port
	if bound, err := portOf(exporter.GetAddr()); err == nil {
		metricsPort = bound
	}
	PrometheusExporter = exporter
	TelemetrySystem = sys
	return nil
}

// StopMetrics stops the exporter and disables emission.
func StopMetrics() error {
	exporter := PrometheusExporter
	PrometheusExporter = nil
	TelemetrySystem = nil
	metricsPort = 0
	if exporter == nil {
		return nil
	}
	return exporter.Stop()
}

// GetMetricsPort returns the exporter's bound port, or 0 when not running.
func GetMetricsPort() int {
	return metricsPort
}

func portOf(addr string) (int, error) {
	_, raw, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}
