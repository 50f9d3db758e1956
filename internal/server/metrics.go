package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/config"
	apperrors "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

var metricsProxyClient = &http.Client{Timeout: 5 * time.Second}

// forwardedMetricsHeaders are copied from the exporter response.
var forwardedMetricsHeaders = []string{"Content-Type", "Content-Encoding"}

// MetricsHandler serves the loopback Prometheus exporter's output on the main
// listener so a single port can be scraped.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("metrics exporter not running"))
		return
	}

	target := fmt.Sprintf("http://127.0.0.1:%d/metrics", exporterPort())
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	if enc := r.Header.Get("Accept-Encoding"); enc != "" {
		req.Header.Set("Accept-Encoding", enc)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "metrics exporter unreachable"))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on exporter response

	for _, key := range forwardedMetricsHeaders {
		if v := resp.Header.Get(key); v != "" {
			w.Header().Set(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Metrics response copy failed", zap.Error(err))
	}
}

func exporterPort() int {
	if port := observability.GetMetricsPort(); port > 0 {
		return port
	}
	if cfg := config.GetConfig(); cfg != nil && cfg.Metrics.Port > 0 {
		return cfg.Metrics.Port
	}
	return 9090
}
