package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

type fakeService struct {
	snapshotReq *core.SnapshotRequest
	listReq     *core.ListRequest
	searchReq   *core.SearchRequest
	err         error
}

func (f *fakeService) GetArchivedSnapshot(ctx context.Context, req core.SnapshotRequest) (*core.SnapshotResult, error) {
	f.snapshotReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &core.SnapshotResult{Found: true, URL: req.URL, TargetDate: req.TargetDate, Content: "hello"}, nil
}

func (f *fakeService) ListAvailableSnapshots(ctx context.Context, req core.ListRequest) (*core.ListResult, error) {
	f.listReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &core.ListResult{URL: req.URL, Snapshots: []core.SnapshotEntry{}}, nil
}

func (f *fakeService) SearchSiteArchives(ctx context.Context, req core.SearchRequest) (*core.SearchResult, error) {
	f.searchReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &core.SearchResult{Domain: req.Domain, Paths: []core.SiteArchivePath{}}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	tools []string
}

func (n *recordingNotifier) ToolFailed(ctx context.Context, tool string, args map[string]any, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tools = append(n.tools, tool)
}

type staticStatus core.GovernorStatus

func (s staticStatus) Status() core.GovernorStatus { return core.GovernorStatus(s) }

func newToolRouter(h *ToolHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/tools", h.ListTools)
	r.Post("/v1/tools/{name}", h.CallTool)
	r.Get("/v1/rate-limits", h.RateLimits)
	return r
}

func call(t *testing.T, h http.Handler, tool, body, cutoff string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/"+tool, strings.NewReader(body))
	if cutoff != "" {
		req.Header.Set(CutoffHeader, cutoff)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
}

func TestCatalogHidesCutoff(t *testing.T) {
	tools := Catalog()
	require.Len(t, tools, 3)

	for _, d := range tools {
		require.True(t, d.HasTag(TagBacktesting), d.Name)
		require.NotEmpty(t, d.WhenToUse, d.Name)
		props, ok := d.Parameters["properties"].(map[string]any)
		require.True(t, ok)
		require.NotContains(t, props, "cutoff_date")
	}

	_, ok := LookupTool("webarchive_delete_everything")
	require.False(t, ok)
}

func TestCallToolPassesCutoffHeader(t *testing.T) {
	svc := &fakeService{}
	router := newToolRouter(&ToolHandler{Service: svc, Now: fixedNow})

	rec := call(t, router, core.ToolGetSnapshot, `{"url":"example.com/team","target_date":"2024-06-01"}`, "2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.snapshotReq)
	require.Equal(t, "2024-01-01", svc.snapshotReq.Cutoff.String())
	require.Equal(t, core.CutoffCallerSupplied, svc.snapshotReq.Cutoff.Source)

	var result core.SnapshotResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.True(t, result.Found)
	require.Equal(t, "hello", result.Content)
}

func TestCallToolDefaultsCutoffToToday(t *testing.T) {
	svc := &fakeService{}
	router := newToolRouter(&ToolHandler{Service: svc, Now: fixedNow})

	rec := call(t, router, core.ToolListSnapshots, `{"url":"example.com","years":[2022,2023],"pick":"yearly","limit":null}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2025-03-09", svc.listReq.Cutoff.String())
	require.Equal(t, core.CutoffDefaultToNow, svc.listReq.Cutoff.Source)
	require.Equal(t, []int{2022, 2023}, svc.listReq.Years)
	require.Equal(t, 0, svc.listReq.Limit)
}

func TestCallToolRejectsBadInput(t *testing.T) {
	svc := &fakeService{}
	router := newToolRouter(&ToolHandler{Service: svc, Now: fixedNow})

	cases := []struct {
		name   string
		tool   string
		body   string
		cutoff string
		status int
	}{
		{"malformed cutoff", core.ToolSearchSite, `{"domain":"example.com"}`, "2024/01/01", http.StatusBadRequest},
		{"missing required", core.ToolGetSnapshot, `{"url":"example.com"}`, "", http.StatusBadRequest},
		{"cutoff as argument", core.ToolSearchSite, `{"domain":"example.com","cutoff_date":"2020-01-01"}`, "", http.StatusBadRequest},
		{"wrong type", core.ToolSearchSite, `{"domain":"example.com","limit":"ten"}`, "", http.StatusBadRequest},
		{"not an object", core.ToolSearchSite, `[1,2]`, "", http.StatusBadRequest},
		{"unknown tool", "webarchive_nope", `{}`, "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, router, tc.tool, tc.body, tc.cutoff)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
	require.Nil(t, svc.searchReq)
	require.Nil(t, svc.snapshotReq)
}

func TestCallToolMapsServiceErrors(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := &fakeService{err: &core.RateLimitError{Bucket: core.ToolBucket(core.ToolSearchSite), Wait: 2 * time.Second, MaxWait: time.Second}}
	router := newToolRouter(&ToolHandler{Service: svc, Notifier: notifier, Now: fixedNow})

	rec := call(t, router, core.ToolSearchSite, `{"domain":"example.com","path_pattern":"*team*"}`, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Equal(t, "*team*", svc.searchReq.PathPattern)
	require.Equal(t, []string{core.ToolSearchSite}, notifier.tools)

	svc.err = core.InvalidDate("target_date", "2024-02-30", "")
	rec = call(t, router, core.ToolGetSnapshot, `{"url":"example.com","target_date":"2024-02-30"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, notifier.tools, 1)

	svc.err = core.Unavailable(errors.New("503"))
	rec = call(t, router, core.ToolGetSnapshot, `{"url":"example.com","target_date":"2024-02-01"}`, "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Len(t, notifier.tools, 2)
}

func TestRateLimitsEndpoint(t *testing.T) {
	status := staticStatus{Buckets: []core.BucketStatus{{Bucket: core.GlobalBucket, MaxRequestsPerSecond: 10, Issued: 3}}}
	router := newToolRouter(&ToolHandler{Limits: status})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rate-limits", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body core.GovernorStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Buckets, 1)
	require.Equal(t, 3, body.Buckets[0].Issued)

	rec = httptest.NewRecorder()
	newToolRouter(&ToolHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rate-limits", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
