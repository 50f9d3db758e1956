package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBearerAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	reject := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "UNAUTHORIZED", http.StatusUnauthorized)
	})

	cases := []struct {
		name   string
		token  string
		header string
		status int
	}{
		{"disabled", "", "", http.StatusNoContent},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"wrong token", "s3cret", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "s3cret", "Basic s3cret", http.StatusUnauthorized},
		{"valid", "s3cret", "Bearer s3cret", http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/tools", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			BearerAuth(tc.token, reject)(ok).ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				require.Contains(t, rec.Body.String(), "UNAUTHORIZED")
				require.Equal(t, `Bearer realm="webarchive"`, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}
