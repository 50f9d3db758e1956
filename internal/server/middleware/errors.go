package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope. The
// stack goes to the server log, never to the client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			requestID := GetRequestID(r.Context())
			metrics.RecordPanic()
			if logger := observability.ServerLogger; logger != nil {
				logger.Error("Handler panic",
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
					zap.Any("panic", recovered),
					zap.ByteString("stack", debug.Stack()))
			}

			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", recovered)).
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// writeErrorResponse is the middleware-local writer; the errors package
// depends on this one, so it cannot be used here.
func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			Details:   envelope.Details,
			RequestID: envelope.CorrelationID,
		},
	})
}
