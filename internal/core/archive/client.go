package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	"github.com/chestnutforty/mcp-webarchive/internal/core/engine"
	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
)

const (
	defaultBaseURL        = "https://web.archive.org"
	defaultUserAgent      = "webarchive/dev (+https://github.com/chestnutforty/mcp-webarchive)"
	defaultTimeout        = 30 * time.Second
	defaultContentTimeout = 60 * time.Second
	defaultRetryBackoff   = 500 * time.Millisecond
	maxRetryAfter         = 5 * time.Second
	maxBodyBytes          = 10 << 20

	endpointCDX     = "cdx"
	endpointContent = "content"
)

// cdxFields is the column list requested from the index.
const cdxFields = "timestamp,original,statuscode"

var captureURLPattern = regexp.MustCompile(`/web/(\d{14})(?:[a-z]{2}_)?/`)

// Governor grants permission for outbound requests.
type Governor interface {
	Acquire(ctx context.Context, tool string) (engine.Grant, error)
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	UserAgent       string
	ProxyURL        string
	Timeout         time.Duration
	ContentTimeout  time.Duration
	MaxContentChars int
}

// Client queries the Wayback Machine index and fetches archived pages.
// Every HTTP request goes through the Governor exactly once; a transient
// failure is retried once without another acquire.
type Client struct {
	Governor        Governor
	HTTP            *http.Client
	ContentHTTP     *http.Client
	BaseURL         string
	UserAgent       string
	MaxContentChars int
	RetryBackoff    time.Duration
}

// NewClient builds a client from options.
func NewClient(governor Governor, opts Options) (*Client, error) {
	if governor == nil {
		return nil, errors.New("archive client requires a governor")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(opts.ProxyURL) != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid archive proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	contentTimeout := opts.ContentTimeout
	if contentTimeout <= 0 {
		contentTimeout = defaultContentTimeout
	}
	maxChars := opts.MaxContentChars
	if maxChars <= 0 {
		maxChars = DefaultMaxContentChars
	}

	return &Client{
		Governor:        governor,
		HTTP:            &http.Client{Timeout: timeout, Transport: transport},
		ContentHTTP:     &http.Client{Timeout: contentTimeout, Transport: transport},
		BaseURL:         opts.BaseURL,
		UserAgent:       opts.UserAgent,
		MaxContentChars: maxChars,
	}, nil
}

// FetchNearest returns the latest capture of target on or before the given
// day, or core.ErrNotFound.
func (c *Client) FetchNearest(ctx context.Context, tool, target string, onOrBefore time.Time) (*core.Snapshot, error) {
	snaps, err := c.ListRange(ctx, tool, core.RangeQuery{
		URL:   target,
		To:    onOrBefore,
		Limit: -1,
	})
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, core.ErrNotFound
	}
	latest := snaps[len(snaps)-1]
	return &latest, nil
}

// ListRange runs one index listing. Rows come back oldest first.
func (c *Client) ListRange(ctx context.Context, tool string, q core.RangeQuery) ([]core.Snapshot, error) {
	if c == nil || c.Governor == nil {
		return nil, errors.New("archive client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	params := url.Values{}
	params.Set("url", q.URL)
	params.Set("output", "json")
	params.Set("fl", cdxFields)
	params.Add("filter", "statuscode:200")
	if q.OriginalPattern != "" {
		params.Add("filter", "original:"+q.OriginalPattern)
	}
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format("20060102"))
	}
	if !q.To.IsZero() {
		params.Set("to", q.To.UTC().Format("20060102"))
	}
	if q.Collapse != "" {
		params.Set("collapse", q.Collapse)
	}
	if q.Limit != 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	endpoint := c.baseURL().ResolveReference(&url.URL{Path: "/cdx/search/cdx", RawQuery: params.Encode()})

	body, _, err := c.get(ctx, tool, endpointCDX, c.HTTP, endpoint.String(), "application/json")
	if err != nil {
		return nil, err
	}

	snaps, err := c.parseCDX(body)
	if err != nil {
		return nil, core.Unavailable(&core.UpstreamError{Endpoint: endpointCDX, Err: err})
	}
	core.SortSnapshots(snaps)
	return snaps, nil
}

// FetchContent downloads the raw archived page for snap and converts HTML
// into readable text.
func (c *Client) FetchContent(ctx context.Context, tool string, snap core.Snapshot) (*core.Page, error) {
	if c == nil || c.Governor == nil {
		return nil, errors.New("archive client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rawURL := c.baseURL().String() + "/web/" + snap.WaybackTimestamp() + "id_/" + snap.Original
	client := c.ContentHTTP
	if client == nil {
		client = c.HTTP
	}

	body, resp, err := c.get(ctx, tool, endpointContent, client, rawURL, "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	page := &core.Page{
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
		CaptureTime: captureTimeFromURL(resp.Request.URL),
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		reader = bytes.NewReader(body)
	}

	var text string
	if isHTML(contentType, body) {
		text, err = HTMLToText(reader)
		if err != nil {
			return nil, core.Unavailable(&core.UpstreamError{Endpoint: endpointContent, Err: err})
		}
	} else {
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, core.Unavailable(&core.UpstreamError{Endpoint: endpointContent, Err: err})
		}
		text = strings.TrimSpace(string(decoded))
	}

	limit := c.MaxContentChars
	if limit <= 0 {
		limit = DefaultMaxContentChars
	}
	page.Content, page.Truncated = Truncate(text, limit)
	return page, nil
}

// ArchiveURL builds the public archive location of a capture.
func ArchiveURL(snap core.Snapshot) string {
	return defaultBaseURL + "/web/" + snap.WaybackTimestamp() + "/" + snap.Original
}

// get acquires the governor once and performs the request with at most one
// retry for transient failures.
func (c *Client) get(ctx context.Context, tool, endpoint string, client *http.Client, target, accept string) ([]byte, *http.Response, error) {
	if _, err := c.Governor.Acquire(ctx, tool); err != nil {
		return nil, nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelay(lastErr)); err != nil {
				return nil, nil, err
			}
		}

		started := time.Now()
		body, resp, err := c.do(ctx, client, endpoint, target, accept)
		if err == nil {
			metrics.RecordArchiveRequest(endpoint, "ok", time.Since(started))
			return body, resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}

		lastErr = err
		if !isTransient(err) {
			metrics.RecordArchiveRequest(endpoint, "error", time.Since(started))
			return nil, nil, core.Unavailable(err)
		}
		metrics.RecordArchiveRequest(endpoint, "retry", time.Since(started))
	}
	return nil, nil, core.Unavailable(lastErr)
}

func (c *Client) do(ctx context.Context, client *http.Client, endpoint, target, accept string) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, &core.UpstreamError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, &core.UpstreamError{Endpoint: endpoint, Retryable: true, Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, resp, &core.UpstreamError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:        retryAfterError(resp),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp, &core.UpstreamError{Endpoint: endpoint, Retryable: true, Err: err}
	}
	return body, resp, nil
}

// parseCDX reads JSON output: a header row followed by data rows.
func (c *Client) parseCDX(body []byte) ([]core.Snapshot, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode cdx response: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[name] = i
	}
	tsCol, okTS := columns["timestamp"]
	origCol, okOrig := columns["original"]
	if !okTS || !okOrig {
		return nil, fmt.Errorf("cdx header missing timestamp/original: %v", rows[0])
	}

	snaps := make([]core.Snapshot, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) <= tsCol || len(row) <= origCol {
			continue
		}
		ts, err := ParseTimestamp(row[tsCol])
		if err != nil {
			continue
		}
		snap := core.Snapshot{Timestamp: ts, Original: row[origCol]}
		snap.ArchiveURL = ArchiveURL(snap)
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// ParseTimestamp reads a 14-digit capture timestamp.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 14 {
		return time.Time{}, fmt.Errorf("invalid capture timestamp %q", raw)
	}
	return time.ParseInLocation(core.WaybackTimestampLayout, raw, time.UTC)
}

func (c *Client) baseURL() *url.URL {
	if c != nil && c.BaseURL != "" {
		if parsed, err := url.Parse(strings.TrimRight(c.BaseURL, "/")); err == nil {
			return parsed
		}
	}
	parsed, _ := url.Parse(defaultBaseURL)
	return parsed
}

func (c *Client) userAgent() string {
	if c != nil && strings.TrimSpace(c.UserAgent) != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

func (c *Client) retryDelay(err error) time.Duration {
	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		var ra *retryAfter
		if errors.As(upstream.Err, &ra) && ra.wait > 0 {
			if ra.wait > maxRetryAfter {
				return maxRetryAfter
			}
			return ra.wait
		}
	}
	if c.RetryBackoff > 0 {
		return c.RetryBackoff
	}
	return defaultRetryBackoff
}

func captureTimeFromURL(u *url.URL) time.Time {
	if u == nil {
		return time.Time{}
	}
	m := captureURLPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return time.Time{}
	}
	ts, err := ParseTimestamp(m[1])
	if err != nil {
		return time.Time{}
	}
	return ts
}

func isHTML(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "html") {
		return true
	}
	if ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		return false
	}
	return strings.Contains(strings.ToLower(http.DetectContentType(body)), "html")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
