package handlers

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
)

// Check results.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

// ErrDegraded marks a check failure that should not take the service out of
// rotation. Checkers wrap it.
var ErrDegraded = stderrors.New("degraded")

// HealthResponse is the aggregate /health body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Timestamp     string            `json:"timestamp"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
}

// ProbeResponse is the body of the live/ready/startup probes.
type ProbeResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthChecker is a component that can report its own health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

type probeSpec struct {
	name     string
	timeout  time.Duration
	drains   bool
	failText string
}

var (
	aggregateProbe = probeSpec{name: "", timeout: 5 * time.Second, drains: true, failText: "aggregate health check failed"}
	liveProbe      = probeSpec{name: "live", timeout: 2 * time.Second, failText: "liveness probe failed"}
	readyProbe     = probeSpec{name: "ready", timeout: 5 * time.Second, drains: true, failText: "readiness probe failed"}
	startupProbe   = probeSpec{name: "startup", timeout: 3 * time.Second, failText: "startup probe failed"}
)

// HealthManager runs registered checkers behind the /health endpoints.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
	version  string
	started  time.Time
	draining atomic.Bool
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
		started:  time.Now(),
	}
}

// RegisterChecker adds or replaces the checker called name.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// MarkDraining makes the aggregate and readiness probes fail with
// "shutting down" until the process exits. Liveness stays up.
func (hm *HealthManager) MarkDraining() {
	hm.draining.Store(true)
}

func (hm *HealthManager) Draining() bool {
	return hm.draining.Load()
}

func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = hm.checkers[name]
	}
	hm.mu.RUnlock()

	checks := make(map[string]string, len(names))
	for i, name := range names {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}
		started := time.Now()
		err := checkers[i].CheckHealth(ctx)
		switch {
		case err == nil:
			checks[name] = StatusHealthy
		case stderrors.Is(err, ErrDegraded):
			checks[name] = StatusDegraded
		case stderrors.Is(err, context.DeadlineExceeded):
			checks[name] = StatusTimeout
		default:
			checks[name] = StatusUnhealthy
		}
		metrics.RecordHealthCheck(name, err == nil, time.Since(started))
	}
	return checks
}

func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := StatusHealthy
	for _, result := range checks {
		switch result {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			status = StatusDegraded
		}
	}
	return status
}

func (hm *HealthManager) probe(w http.ResponseWriter, r *http.Request, spec probeSpec) {
	if spec.drains && hm.Draining() {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "shutting down")
		respondWithError(w, r, enrichHealthEnvelope(envelope, spec.name, "shutting_down", nil))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), spec.timeout)
	defer cancel()

	checks := hm.runHealthChecks(ctx)
	status := hm.determineOverallStatus(checks)
	if status == StatusUnhealthy {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", spec.failText)
		respondWithError(w, r, enrichHealthEnvelope(envelope, spec.name, status, checks))
		return
	}

	if spec.name != "" {
		writeJSON(w, http.StatusOK, ProbeResponse{Status: status, Timestamp: time.Now().UTC()})
		return
	}

	uptime := int64(time.Since(hm.started).Seconds())
	metrics.SetServerUptime(uptime)
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Version:       hm.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: uptime,
		Checks:        checks,
	})
}

// HealthHandler serves the aggregate /health report.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, aggregateProbe)
}

func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, liveProbe)
}

func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, readyProbe)
}

func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.probe(w, r, startupProbe)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{"status": status}
	contextData := map[string]interface{}{"status": status}
	if probe != "" {
		details["probe"] = probe
		contextData["probe"] = probe
	}
	if len(checks) > 0 {
		details["checks"] = checks
		var failing []string
		for name, result := range checks {
			if result != StatusHealthy {
				failing = append(failing, name)
			}
		}
		sort.Strings(failing)
		if len(failing) > 0 {
			contextData["unhealthy_checks"] = failing
		}
	}
	envelope = envelope.WithDetails(details)
	envelope, _ = envelope.WithContext(contextData)
	return envelope
}

// GovernorChecker reports degraded once any bucket has spent its hard limit.
// Further archive calls in that bucket fail until restart, but the process
// can still serve the other tools.
func GovernorChecker(limits StatusReporter) HealthChecker {
	return CheckFunc(func(ctx context.Context) error {
		if limits == nil {
			return stderrors.New("rate limiter not configured")
		}
		var exhausted []string
		for _, b := range limits.Status().Buckets {
			if b.HardLimit != nil && b.Issued >= *b.HardLimit {
				exhausted = append(exhausted, string(b.Bucket))
			}
		}
		if len(exhausted) > 0 {
			return fmt.Errorf("%w: hard limit reached for %v", ErrDegraded, exhausted)
		}
		return nil
	})
}
