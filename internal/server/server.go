package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/chestnutforty/mcp-webarchive/internal/errors"
	"github.com/chestnutforty/mcp-webarchive/internal/metrics"
	"github.com/chestnutforty/mcp-webarchive/internal/notify"
	"github.com/chestnutforty/mcp-webarchive/internal/observability"
	"github.com/chestnutforty/mcp-webarchive/internal/server/handlers"
	servermw "github.com/chestnutforty/mcp-webarchive/internal/server/middleware"
)

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
	tools  *handlers.ToolHandler

	activeConns atomic.Int64
}

// Options configures the HTTP server. Zero timeouts fall back to defaults.
type Options struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// AuthToken guards the /v1 endpoints when set.
	AuthToken string
	// AdminToken enables /admin/signal when set.
	AdminToken string

	Service  handlers.ToolService
	Limits   handlers.StatusReporter
	Notifier notify.Notifier
	Health   *handlers.HealthManager
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 150 * time.Second
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 120 * time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Health == nil {
		opts.Health = handlers.NewHealthManager(handlers.AppVersion)
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("no route for "+req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError(req.Method+" not allowed on "+req.URL.Path))
	})

	s := &Server{
		router: r,
		opts:   opts,
		tools: &handlers.ToolHandler{
			Service:  opts.Service,
			Limits:   opts.Limits,
			Notifier: opts.Notifier,
		},
	}

	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
		ConnState:    s.trackConn,
	}
	metrics.SetServerStartTime(time.Now().Unix())

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr),
		zap.Bool("auth", s.opts.AuthToken != ""))

	return s.server.ListenAndServe()
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		metrics.SetActiveConnections(s.activeConns.Add(1))
	case http.StateHijacked, http.StateClosed:
		metrics.SetActiveConnections(s.activeConns.Add(-1))
	}
}

// Shutdown marks the health probes as draining, then gracefully shuts down
// the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	s.opts.Health.MarkDraining()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.opts.Port
}
