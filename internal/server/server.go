// Package server is the kstat introspection API: a read-mostly HTTP view
// of a running kernel's threads, exits and clock.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/tickos/pkg/model"
)

// Kernel is the part of the kernel the API reads and drives.
type Kernel interface {
	Snapshot() model.ProcessorSnapshot
	Thread(tid model.Tid) (model.ThreadInfo, bool)
	WakeUp(tid model.Tid) bool
	Execute(ctx context.Context, path string, host *model.Tid) (model.Tid, error)
	Exits() []model.ExitRecord
	BootID() string
	BootedAt() time.Time
	Now() time.Duration
	PendingTimers() int
}

// Server serves the kstat API.
type Server struct {
	router  chi.Router
	kernel  Kernel
	logger  *slog.Logger
	version string
	policy  string
}

// Option configures optional Server fields.
type Option func(*Server)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithPolicy sets the scheduling policy name reported by /health.
func WithPolicy(p string) Option {
	return func(s *Server) { s.policy = p }
}

// New creates a Server with all routes registered.
func New(k Kernel, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		kernel:  k,
		logger:  logger.With("component", "kstat"),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("kstat listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/threads", func(r chi.Router) {
			r.Get("/", s.handleListThreads)
			r.Route("/{tid}", func(r chi.Router) {
				r.Get("/", s.handleGetThread)
				r.Post("/wake", s.handleWakeThread)
			})
		})

		r.Post("/exec", s.handleExec)
		r.Get("/exits", s.handleListExits)
	})
}
