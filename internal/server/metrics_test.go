package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func withExporter(t *testing.T) {
	t.Helper()
	original := observability.PrometheusExporter
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", "127.0.0.1:0")
	t.Cleanup(func() { observability.PrometheusExporter = original })
}

func TestMetricsHandlerProxiesExporter(t *testing.T) {
	withExporter(t)

	var requested string
	original := metricsProxyClient
	metricsProxyClient = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requested = req.URL.String()
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("webarchive_tool_invocations_total{tool=\"webarchive_search_site\",status=\"success\"} 3\n")),
		}
		resp.Header.Set("Content-Type", "text/plain; version=0.0.4")
		resp.Header.Set("Set-Cookie", "nope")
		return resp, nil
	})}
	t.Cleanup(func() { metricsProxyClient = original })

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(requested, "http://127.0.0.1:"))
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	require.Empty(t, rec.Header().Get("Set-Cookie"))
	require.Contains(t, rec.Body.String(), "tool_invocations_total")
}

func TestMetricsHandlerExporterDown(t *testing.T) {
	withExporter(t)

	original := metricsProxyClient
	metricsProxyClient = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})}
	t.Cleanup(func() { metricsProxyClient = original })

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestMetricsHandlerWithoutExporter(t *testing.T) {
	original := observability.PrometheusExporter
	observability.PrometheusExporter = nil
	t.Cleanup(func() { observability.PrometheusExporter = original })

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
}
