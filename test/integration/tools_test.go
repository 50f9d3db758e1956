package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/core/archive"
	"github.com/chestnutforty/mcp-webarchive/internal/core/engine"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/server"
)

const teamCapture = "20240110093000"

// fakeWayback serves one capture of example.com/team plus a couple of other
// paths on the domain.
func fakeWayback(t *testing.T, contentHits *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/cdx/search/cdx":
			q := r.URL.Query()
			rows := [][]string{{"timestamp", "original", "statuscode"}}
			target := q.Get("url")
			to := q.Get("to")
			if strings.HasSuffix(target, "/*") {
				rows = append(rows,
					[]string{"20230301000000", "https://example.com/about", "200"},
					[]string{teamCapture, "https://example.com/team", "200"},
					[]string{"20250101000000", "https://example.com/future", "200"})
			} else if strings.Contains(target, "example.com/team") && (to == "" || to >= teamCapture[:8]) {
				rows = append(rows, []string{teamCapture, "https://example.com/team", "200"})
			}
			if to != "" {
				kept := rows[:1]
				for _, row := range rows[1:] {
					if row[0][:8] <= to {
						kept = append(kept, row)
					}
				}
				rows = kept
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(rows)
		case strings.HasPrefix(r.URL.Path, "/web/"):
			contentHits.Add(1)
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = fmt.Fprint(w, `<html><head><style>p{}</style></head><body><nav>menu</nav><h1>Our team</h1><p>Ada Lovelace, CEO</p></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newToolServer(t *testing.T, upstream string, policy core.RatePolicy) (*httptest.Server, *http.Client, *engine.Governor) {
	t.Helper()
	observability.InitCLILogger("test", false)
	observability.InitServerLogger("test", "warn", "simple")

	governor := engine.NewGovernor(policy)
	client, err := archive.NewClient(governor, archive.Options{BaseURL: upstream})
	require.NoError(t, err)

	ts, httpClient := newTestServerWith(t, server.Options{
		Host:      "127.0.0.1",
		AuthToken: "secret",
		Service:   engine.NewService(client),
		Limits:    governor,
	}, nil)
	return ts, httpClient, governor
}

func postTool(t *testing.T, client *http.Client, base, tool, cutoff, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, base+"/v1/tools/"+tool, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	if cutoff != "" {
		req.Header.Set("X-Cutoff-Date", cutoff)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSnapshotTool_EndToEnd(t *testing.T) {
	var contentHits atomic.Int32
	upstream := fakeWayback(t, &contentHits)
	ts, client, governor := newToolServer(t, upstream.URL, core.DefaultRatePolicy())

	resp := postTool(t, client, ts.URL, core.ToolGetSnapshot, "2024-06-01",
		`{"url":"example.com/team","target_date":"2024-12-31"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result core.SnapshotResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.Found)
	assert.Equal(t, "2024-06-01", result.TargetDate, "target date is clamped to the cutoff")
	assert.Equal(t, "2024-01-10", result.CaptureDate)
	assert.Contains(t, result.Content, "Ada Lovelace, CEO")
	assert.NotContains(t, result.Content, "p{}")
	assert.Equal(t, int32(1), contentHits.Load())

	status := governor.Status()
	require.NotEmpty(t, status.Buckets)
	assert.Equal(t, core.GlobalBucket, status.Buckets[0].Bucket)
	assert.GreaterOrEqual(t, status.Buckets[0].Issued, 2)
}

func TestSnapshotTool_CutoffHidesLaterCaptures(t *testing.T) {
	var contentHits atomic.Int32
	upstream := fakeWayback(t, &contentHits)
	ts, client, _ := newToolServer(t, upstream.URL, core.DefaultRatePolicy())

	resp := postTool(t, client, ts.URL, core.ToolGetSnapshot, "2023-12-31",
		`{"url":"example.com/team","target_date":"2024-06-01"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result core.SnapshotResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Found)
	assert.NotEmpty(t, result.TriedVariants)
	assert.Zero(t, contentHits.Load())
}

func TestSearchTool_EndToEnd(t *testing.T) {
	var contentHits atomic.Int32
	upstream := fakeWayback(t, &contentHits)
	ts, client, _ := newToolServer(t, upstream.URL, core.DefaultRatePolicy())

	resp := postTool(t, client, ts.URL, core.ToolSearchSite, "2024-06-01", `{"domain":"example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result core.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	paths := make([]string, 0, len(result.Paths))
	for _, p := range result.Paths {
		paths = append(paths, p.Path)
	}
	assert.Contains(t, paths, "/team")
	assert.NotContains(t, paths, "/future")
}

func TestTools_HardLimitSurfacesAsRateLimit(t *testing.T) {
	var contentHits atomic.Int32
	upstream := fakeWayback(t, &contentHits)

	zero := 0
	policy := core.DefaultRatePolicy()
	policy.Tools[core.ToolListSnapshots] = core.PartialPolicy{HardLimit: &zero}
	ts, client, _ := newToolServer(t, upstream.URL, policy)

	resp := postTool(t, client, ts.URL, core.ToolListSnapshots, "", `{"url":"example.com/team"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	resp = postTool(t, client, ts.URL, core.ToolGetSnapshot, "2024-06-01", `{"url":"example.com/team","target_date":"2024-02-01"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTools_RequireToken(t *testing.T) {
	var contentHits atomic.Int32
	upstream := fakeWayback(t, &contentHits)
	ts, client, _ := newToolServer(t, upstream.URL, core.DefaultRatePolicy())

	resp, err := client.Get(ts.URL + "/v1/tools")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
