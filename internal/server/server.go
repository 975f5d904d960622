// Package server exposes a run's event stream over HTTP Server-Sent
// Events, grounded on the teacher's internal/server/handler_sse.go —
// this gives an out-of-scope terminal-UI collaborator a concrete
// transport to consume without the core depending on a UI
// implementation.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/ghrun/pkg/events"
)

// Server serves GET /runs/{id}/events for every run registered with it.
type Server struct {
	router chi.Router
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*events.Sink
}

// New builds a Server with its routes registered.
func New(logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger.With("component", "server"),
		runs:   make(map[string]*events.Sink),
	}
	s.routes()
	return s
}

// Register makes runID's event stream available at /runs/{runID}/events
// until Unregister is called (typically once the run finishes).
func (s *Server) Register(runID string, sink *events.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = sink
}

// Unregister stops serving runID's event stream. Existing SSE
// connections keep draining whatever the sink still delivers; new
// requests for runID get 404.
func (s *Server) Unregister(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}

func (s *Server) sinkFor(runID string) (*events.Sink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sink, ok := s.runs[runID]
	return sink, ok
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/{id}/events", s.handleEvents)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
