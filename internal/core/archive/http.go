package archive

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

// retryAfter carries the upstream Retry-After hint of a failed response.
type retryAfter struct {
	wait time.Duration
	raw  string
}

func (r *retryAfter) Error() string {
	if r.raw == "" {
		return "unexpected archive response"
	}
	return "unexpected archive response (retry after " + r.raw + ")"
}

func retryAfterError(resp *http.Response) error {
	wait, raw := retryAfterHeader(resp)
	return &retryAfter{wait: wait, raw: raw}
}

func retryAfterHeader(resp *http.Response) (time.Duration, string) {
	if resp == nil || resp.Header == nil {
		return 0, ""
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0, ""
	}

	if seconds, err := strconv.Atoi(retry); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, retry
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed), retry
	}

	return 0, retry
}

// isTransient reports timeouts, connection failures, 5xx and 429.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var upstream *core.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Retryable {
			return true
		}
		if upstream.StatusCode != 0 {
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}
