// Package metrics names and emits the service's Prometheus series. Every
// helper is a no-op until observability.InitMetrics installs a telemetry
// system.
package metrics

import (
	"strconv"
	"time"

	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

// Server and error series
const (
	ActiveConnections   = "server_active_connections"
	ServerStartTime     = "server_start_time_seconds"
	ServerUptime        = "server_uptime_seconds"
	HealthCheckTotal    = "health_check_total"
	HealthCheckDuration = "health_check_duration_ms"
	ErrorsTotal         = "errors_total"
	ErrorsByTool        = "errors_by_tool"
	PanicsTotal         = "panics_total"
)

func counter(name string, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Counter(name, 1, labels)
	}
}

func gauge(name string, value float64) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Gauge(name, value, nil)
	}
}

func histogram(name string, d time.Duration, labels map[string]string) {
	if sys := observability.TelemetrySystem; sys != nil {
		_ = sys.Histogram(name, d, labels)
	}
}

// SetActiveConnections reports the number of open client connections.
func SetActiveConnections(count int64) {
	gauge(ActiveConnections, float64(count))
}

// SetServerStartTime records when the listener came up, as a Unix timestamp.
func SetServerStartTime(unix int64) {
	gauge(ServerStartTime, float64(unix))
}

func SetServerUptime(seconds int64) {
	gauge(ServerUptime, float64(seconds))
}

// RecordHealthCheck records one health checker run.
func RecordHealthCheck(check string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	counter(HealthCheckTotal, map[string]string{"check": check, "status": status})
	histogram(HealthCheckDuration, duration, map[string]string{"check": check})
}

// RecordError counts an error response by envelope code and status.
func RecordError(code string, httpStatus int) {
	counter(ErrorsTotal, map[string]string{
		"error_code":  code,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordToolError counts an error response against the tool label used by
// the request middleware (a catalog tool name or "other").
func RecordToolError(tool, code string) {
	counter(ErrorsByTool, map[string]string{"tool": tool, "error_code": code})
}

func RecordPanic() {
	counter(PanicsTotal, nil)
}
