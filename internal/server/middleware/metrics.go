package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

// CutoffHeader mirrors the header read by the tool handlers; it is logged so
// backtesting runs can be traced.
const CutoffHeader = "X-Cutoff-Date"

var knownTools = map[string]bool{
	core.ToolGetSnapshot:   true,
	core.ToolListSnapshots: true,
	core.ToolSearchSite:    true,
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// routeLabel returns the matched chi pattern, or a fixed bucket for unrouted
// paths so raw URLs never become label values.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/health"):
		return "/health/*"
	case strings.HasPrefix(r.URL.Path, "/v1/"):
		return "/v1/*"
	default:
		return "/unmatched"
	}
}

// ToolLabel names the invoked tool for /v1/tools/{name}; unknown names
// collapse to "other". Requests outside the tool routes return "".
func ToolLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	name := rctx.URLParam("name")
	if name == "" {
		return ""
	}
	if knownTools[name] {
		return name
	}
	return "other"
}

// RequestMetrics emits per-request counters and durations and logs the
// completed request. Health probes are logged at debug level.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		route := routeLabel(r)
		tool := ToolLabel(r)

		if sys := observability.TelemetrySystem; sys != nil {
			labels := map[string]string{
				"method":   r.Method,
				"endpoint": route,
				"status":   strconv.Itoa(rec.status),
			}
			if tool != "" {
				labels["tool"] = tool
			}
			_ = sys.Counter("http_requests_total", 1, labels)
			_ = sys.Histogram("http_request_duration_ms", duration, labels)
			_ = sys.Gauge("http_response_size_bytes", float64(rec.bytes), map[string]string{"endpoint": route})

			if rec.status >= 400 {
				class := "client_error"
				if rec.status >= 500 {
					class = "server_error"
				}
				_ = sys.Counter("http_errors_total", 1, map[string]string{
					"endpoint":   route,
					"status":     strconv.Itoa(rec.status),
					"error_type": class,
				})
			}
		}

		logger := observability.ServerLogger
		if logger == nil {
			return
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", route),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.Int64("response_size", rec.bytes),
			zap.String("request_id", GetRequestID(r.Context())),
		}
		if tool != "" {
			fields = append(fields, zap.String("tool", tool))
		}
		if cutoff := r.Header.Get(CutoffHeader); cutoff != "" {
			fields = append(fields, zap.String("cutoff", cutoff))
		}
		if strings.HasPrefix(route, "/health") {
			logger.Debug("HTTP request completed", fields...)
			return
		}
		logger.Info("HTTP request completed", fields...)
	})
}
