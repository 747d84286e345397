// Package server assembles the HTTP API: health probes, version info,
// and the research job endpoints, behind request ID, recovery, and
// error envelope middleware.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"github.com/fathomlabs/fathom/internal/observability"
	"github.com/fathomlabs/fathom/internal/server/handlers"
	"github.com/fathomlabs/fathom/internal/server/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// versionInfo is set once at startup from build metadata.
var versionInfo = struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
}{Version: "dev"}

// SetVersionInfo records build metadata served on /version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Option configures optional server surfaces.
type Option func(*Server)

// WithJobs mounts the research job endpoints.
func WithJobs(h *handlers.JobsHandler) Option {
	return func(s *Server) { s.jobs = h }
}

// WithQuestions mounts the clarifying-question endpoint.
func WithQuestions(h *handlers.QuestionsHandler) Option {
	return func(s *Server) { s.questions = h }
}

// WithTimeouts overrides the HTTP server timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
		s.idleTimeout = idle
	}
}

// Server is the HTTP API server.
type Server struct {
	host string
	port int

	jobs      *handlers.JobsHandler
	questions *handlers.QuestionsHandler

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	router chi.Router
	http   *http.Server
}

// New creates a server listening on host:port. Optional surfaces are
// mounted via options; the health and version endpoints are always on.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:         host,
		port:         port,
		readTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		idleTimeout:  120 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}
	return s
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.port }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Start serves HTTP until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	observability.Logger().Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req,
			apperrors.NewHTTPError(http.StatusNotFound, "NOT_FOUND", "resource not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req,
			apperrors.NewHTTPError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed"))
	})

	r.Get("/health", handlers.HealthHandler)
	r.Get("/health/live", handlers.LivenessHandler)
	r.Get("/health/ready", handlers.ReadinessHandler)
	r.Get("/health/startup", handlers.StartupHandler)
	r.Get("/version", versionHandler)

	if s.jobs != nil || s.questions != nil {
		r.Route("/api", func(api chi.Router) {
			if s.jobs != nil {
				api.Post("/jobs", s.jobs.Create)
				api.Get("/jobs", s.jobs.List)
				api.Get("/jobs/{id}", s.jobs.Get)
				api.Get("/jobs/{id}/status", s.jobs.Status)
			}
			if s.questions != nil {
				api.Post("/questions", s.questions.Generate)
			}
		})
	}

	return r
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(versionInfo); err != nil {
		observability.Logger().Error("failed to encode version response", zap.Error(err))
	}
}
