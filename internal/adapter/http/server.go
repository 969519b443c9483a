package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/cadastre-extract-service/internal/coordinator"
)

// ReadinessFunc adapts a function to sharedobs.ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Server exposes the session API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	sessions   *coordinator.Registry
	search     coordinator.Searcher
	maxUpload  int64
	logger     *slog.Logger
}

// NewServer creates the HTTP server. maxUpload bounds snapshot uploads.
func NewServer(addr string, sessions *coordinator.Registry, search coordinator.Searcher, maxUpload int64, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		sessions:  sessions,
		search:    search,
		maxUpload: maxUpload,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/state", s.withSession(s.handleState))
	mux.HandleFunc("GET /api/sessions/{id}/events", s.withSession(s.handleEvents))
	mux.HandleFunc("POST /api/sessions/{id}/query", s.withSession(s.handleQuery))
	mux.HandleFunc("POST /api/sessions/{id}/select", s.withSession(s.handleSelect))
	mux.HandleFunc("POST /api/sessions/{id}/click", s.withSession(s.handleClick))
	mux.HandleFunc("POST /api/sessions/{id}/center", s.withSession(s.handleCenter))
	mux.HandleFunc("POST /api/sessions/{id}/export", s.withSession(s.handleExport))
	mux.HandleFunc("PUT /api/sessions/{id}/snapshot", s.withSession(s.handleSnapshot))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln. Returns http.ErrServerClosed on graceful
// shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server starting", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// RegisterOnShutdown registers f to run when Shutdown begins. Long-lived
// event streams only end once their sessions close, so session teardown
// belongs here.
func (s *Server) RegisterOnShutdown(f func()) {
	s.httpServer.RegisterOnShutdown(f)
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
