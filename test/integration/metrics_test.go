package integration

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/server"
)

// isPermissionError reports sandbox refusals to open loopback sockets.
func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

func initMetricsOrSkip(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0); err != nil {
		if isPermissionError(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.StopMetrics() })
}

func newTestServerWith(t *testing.T, opts server.Options, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := server.New(opts)
	if setup != nil {
		if mux, ok := srv.Handler().(*chi.Mux); ok {
			setup(mux)
		}
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if isPermissionError(err) {
			t.Skipf("loopback listener refused: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: srv.Handler()},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}

func scrape(t *testing.T, client *http.Client, base string) (string, string) {
	t.Helper()
	resp, err := client.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck // test cleanup
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), resp.Header.Get("Content-Type")
}

func TestMetrics_ToolCallsAreExported(t *testing.T) {
	initMetricsOrSkip(t)

	var contentHits atomic.Int32
	upstream := fakeWayback(t, &contentHits)
	ts, client, _ := newToolServer(t, upstream.URL, core.DefaultRatePolicy())

	const workers = 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			tool, body := core.ToolSearchSite, `{"domain":"example.com"}`
			if i%2 == 0 {
				tool, body = core.ToolGetSnapshot, `{"url":"example.com/team","target_date":"2024-03-01"}`
			}
			req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/tools/"+tool, strings.NewReader(body))
			if err != nil {
				return
			}
			req.Header.Set("Authorization", "Bearer secret")
			req.Header.Set("X-Cutoff-Date", "2024-06-01")
			if resp, err := client.Do(req); err == nil {
				_ = resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	// An invalid call feeds the error series.
	resp := postTool(t, client, ts.URL, core.ToolListSnapshots, "", `{"url":"example.com","pick":"hourly"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, contentType := scrape(t, client, ts.URL)
	assert.True(t, strings.HasPrefix(contentType, "text/plain"), "content type %q", contentType)
	for _, series := range []string{
		"test_http_requests_total",
		"test_http_request_duration_ms",
		"test_tool_invocations_total",
		"test_archive_requests_total",
		"test_governor_decisions_total",
		"test_errors_total",
		"test_errors_by_tool",
	} {
		assert.Contains(t, body, series)
	}
	assert.Contains(t, body, `tool="webarchive_get_snapshot"`)
}

func TestMetrics_ExporterLinesAreWellFormed(t *testing.T) {
	initMetricsOrSkip(t)

	ts, client := newTestServerWith(t, server.Options{Host: "127.0.0.1"}, nil)
	for i := 0; i < 3; i++ {
		resp, err := client.Get(ts.URL + "/health")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	body, _ := scrape(t, client, ts.URL)
	samples := 0
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		require.GreaterOrEqual(t, len(fields), 2, "malformed sample %q", line)
		samples++
	}
	assert.Greater(t, samples, 0)
	assert.Contains(t, body, `endpoint="/health"`)
}

func TestMetrics_DisabledTelemetryReturns503(t *testing.T) {
	_ = observability.StopMetrics()
	t.Setenv("WEBARCHIVE_METRICS_ENABLED", "false")

	ts, client := newTestServerWith(t, server.Options{Host: "127.0.0.1"}, func(mux *chi.Mux) {
		mux.Get("/probe", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})

	resp, err := client.Get(ts.URL + "/probe")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = client.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
