package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/schema"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chestnutforty/mcp-webarchive/internal/core"
	apperrors "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
	"github.com/chestnutforty/mcp-webarchive/internal/notify"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/server/middleware"
)

// CutoffHeader carries the backtesting cutoff date (YYYY-MM-DD).
const CutoffHeader = "X-Cutoff-Date"

const maxArgumentBytes = 64 << 10

// ToolService is the snapshot service behind the tool endpoints.
type ToolService interface {
	GetArchivedSnapshot(ctx context.Context, req core.SnapshotRequest) (*core.SnapshotResult, error)
	ListAvailableSnapshots(ctx context.Context, req core.ListRequest) (*core.ListResult, error)
	SearchSiteArchives(ctx context.Context, req core.SearchRequest) (*core.SearchResult, error)
}

// StatusReporter exposes live rate limiter state.
type StatusReporter interface {
	Status() core.GovernorStatus
}

// ToolHandler serves tool discovery and invocation.
type ToolHandler struct {
	Service  ToolService
	Limits   StatusReporter
	Notifier notify.Notifier

	// Now defaults to time.Now and anchors the default cutoff.
	Now func() time.Time
}

type snapshotArgs struct {
	URL        string `json:"url"`
	TargetDate string `json:"target_date"`
}

type listArgs struct {
	URL        string `json:"url"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Years      []int  `json:"years"`
	Pick       string `json:"pick"`
	TargetDate string `json:"target_date"`
	Limit      int    `json:"limit"`
}

type searchArgs struct {
	Domain      string `json:"domain"`
	PathPattern string `json:"path_pattern"`
	Limit       int    `json:"limit"`
}

// ListTools returns every tool descriptor.
func (h *ToolHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": Catalog()})
}

// RateLimits reports the live governor buckets.
func (h *ToolHandler) RateLimits(w http.ResponseWriter, r *http.Request) {
	if h.Limits == nil {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "rate limiter not configured"))
		return
	}
	writeJSON(w, http.StatusOK, h.Limits.Status())
}

// CallTool invokes the tool named in the path with a JSON argument object.
func (h *ToolHandler) CallTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	descriptor, ok := LookupTool(name)
	if !ok {
		respondWithError(w, r, errors.NewErrorEnvelope("NOT_FOUND", fmt.Sprintf("unknown tool %q", name)))
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	cutoff, err := core.NewCutoffContext(r.Header.Get(CutoffHeader), now().UTC())
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	payload, args, err := readArguments(r)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if err := validateArguments(descriptor, payload); err != nil {
		respondWithError(w, r, err)
		return
	}

	started := time.Now()
	result, err := h.dispatch(r.Context(), name, payload, cutoff)
	metrics.RecordToolInvocation(name, err == nil)

	logger := observability.ServerLogger
	if err != nil {
		if logger != nil {
			logger.Warn("Tool invocation failed",
				zap.String("tool", name),
				zap.String("cutoff", cutoff.String()),
				zap.String("cutoff_source", string(cutoff.Source)),
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.Error(err))
		}
		if h.Notifier != nil && !core.IsInputError(err) {
			h.Notifier.ToolFailed(r.Context(), name, args, err)
		}
		respondWithError(w, r, err)
		return
	}

	if logger != nil {
		logger.Info("Tool invocation completed",
			zap.String("tool", name),
			zap.String("cutoff", cutoff.String()),
			zap.String("cutoff_source", string(cutoff.Source)),
			zap.Duration("duration", time.Since(started)))
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ToolHandler) dispatch(ctx context.Context, name string, payload []byte, cutoff core.CutoffContext) (any, error) {
	if h.Service == nil {
		return nil, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "snapshot service not configured")
	}

	switch name {
	case core.ToolGetSnapshot:
		var args snapshotArgs
		if err := decodeArguments(payload, &args); err != nil {
			return nil, err
		}
		return h.Service.GetArchivedSnapshot(ctx, core.SnapshotRequest{
			URL:        args.URL,
			TargetDate: args.TargetDate,
			Cutoff:     cutoff,
		})

	case core.ToolListSnapshots:
		var args listArgs
		if err := decodeArguments(payload, &args); err != nil {
			return nil, err
		}
		return h.Service.ListAvailableSnapshots(ctx, core.ListRequest{
			URL:        args.URL,
			StartDate:  args.StartDate,
			EndDate:    args.EndDate,
			Years:      args.Years,
			Pick:       args.Pick,
			TargetDate: args.TargetDate,
			Limit:      args.Limit,
			Cutoff:     cutoff,
		})

	case core.ToolSearchSite:
		var args searchArgs
		if err := decodeArguments(payload, &args); err != nil {
			return nil, err
		}
		return h.Service.SearchSiteArchives(ctx, core.SearchRequest{
			Domain:      args.Domain,
			PathPattern: args.PathPattern,
			Limit:       args.Limit,
			Cutoff:      cutoff,
		})
	}
	return nil, core.InvalidArgument("unknown tool %q", name)
}

// readArguments returns the argument object with null members removed, in
// both encoded and decoded form. An empty body is an empty object.
func readArguments(r *http.Request) ([]byte, map[string]any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxArgumentBytes+1))
	if err != nil {
		return nil, nil, core.InvalidArgument("read arguments: %v", err)
	}
	if len(body) > maxArgumentBytes {
		return nil, nil, core.InvalidArgument("arguments exceed %d bytes", maxArgumentBytes)
	}

	args := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			return nil, nil, core.InvalidArgument("arguments must be a JSON object: %v", err)
		}
	}
	for k, v := range args {
		if v == nil {
			delete(args, k)
		}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return nil, nil, core.InvalidArgument("encode arguments: %v", err)
	}
	return payload, args, nil
}

func validateArguments(descriptor ToolDescriptor, payload []byte) error {
	schemaBytes, err := json.Marshal(descriptor.Parameters)
	if err != nil {
		return fmt.Errorf("encode %s schema: %w", descriptor.Name, err)
	}
	validator, err := schema.NewValidator(schemaBytes)
	if err != nil {
		return fmt.Errorf("compile %s schema: %w", descriptor.Name, err)
	}
	diagnostics, err := validator.ValidateJSON(payload)
	if err != nil {
		return core.InvalidArgument("%s arguments: %v", descriptor.Name, err)
	}
	if len(diagnostics) > 0 {
		messages := make([]string, 0, len(diagnostics))
		for _, d := range diagnostics {
			messages = append(messages, d.Message)
		}
		return core.InvalidArgument("%s arguments: %s", descriptor.Name, strings.Join(messages, "; "))
	}
	return nil
}

func decodeArguments(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return core.InvalidArgument("arguments: %v", err)
	}
	return nil
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
