package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
)

func TestFromDomainErrorMapping(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"rate limited", &core.RateLimitError{Bucket: core.GlobalBucket, Wait: 3 * time.Second}, CodeRateLimited, http.StatusTooManyRequests},
		{"hard limit", &core.RateLimitError{Bucket: core.ToolBucket(core.ToolSearchSite), HardStop: true, Limit: 5}, CodeHardLimitReached, http.StatusTooManyRequests},
		{"invalid date", core.InvalidDate("target_date", "2024-13-01", ""), CodeInvalidInput, http.StatusBadRequest},
		{"invalid argument", core.InvalidArgument("pick %q", "hourly"), CodeInvalidInput, http.StatusBadRequest},
		{"upstream", core.Unavailable(fmt.Errorf("502")), CodeExternalService, http.StatusBadGateway},
		{"wrapped rate limit", fmt.Errorf("listing: %w", &core.RateLimitError{Bucket: core.GlobalBucket}), CodeRateLimited, http.StatusTooManyRequests},
		{"deadline", fmt.Errorf("archive call: %w", context.DeadlineExceeded), CodeTimeout, http.StatusGatewayTimeout},
		{"other", fmt.Errorf("boom"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			envelope := FromDomainError(ctx, tc.err)
			require.Equal(t, tc.code, envelope.Code)
			require.Equal(t, tc.status, HTTPStatusFromEnvelope(envelope))
		})
	}
}

func TestHardLimitIsNotRetryable(t *testing.T) {
	envelope := FromDomainError(context.Background(), &core.RateLimitError{Bucket: core.GlobalBucket, HardStop: true})
	require.Equal(t, false, envelope.Details["retryable"])
	require.NotContains(t, envelope.Details, "retry_after_seconds")
}

func TestRespondWithErrorRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tools/webarchive_get_snapshot", nil)

	RespondWithError(rec, req, &core.RateLimitError{Bucket: core.GlobalBucket, Wait: 1500 * time.Millisecond, MaxWait: time.Second})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, CodeRateLimited, body.Error.Code)
	require.Equal(t, "global", body.Error.Details["bucket"])
	require.Equal(t, true, body.Error.Details["retryable"])
	require.NotEmpty(t, body.Error.RequestID)
}

func TestRespondWithErrorHidesContext(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	RespondWithError(rec, req, core.Unavailable(fmt.Errorf("dial tcp 10.0.0.1:443: refused")))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotContains(t, rec.Body.String(), "10.0.0.1")
}
