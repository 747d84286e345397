// Package handlers provides the HTTP handlers for the API server:
// health probes, research job CRUD, and clarifying-question generation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/fathomlabs/fathom/internal/observability"
	"github.com/fathomlabs/fathom/internal/server/middleware"
	"go.uber.org/zap"
)

// checkTimeout bounds each individual health check.
const checkTimeout = 2 * time.Second

// Checker probes one dependency's health.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) error

// CheckHealth implements Checker.
func (f CheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// HealthResponse is the JSON body of a healthy /health response.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthManager runs registered health checks and serves the probe
// endpoints.
type HealthManager struct {
	version  string
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewHealthManager creates a manager reporting the given version.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]Checker),
	}
}

// RegisterChecker adds a named dependency check.
func (m *HealthManager) RegisterChecker(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = checker
}

// runChecks executes all registered checks with a per-check timeout.
func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(checkers))
	for name, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checker.CheckHealth(checkCtx)
		cancel()

		switch {
		case err == nil:
			results[name] = "healthy"
		case errors.Is(err, context.DeadlineExceeded):
			results[name] = "timeout"
		default:
			results[name] = "unhealthy"
		}
	}
	return results
}

// determineOverallStatus folds check results into one status. Any
// unhealthy check makes the whole service unhealthy; a timed-out check
// degrades it without failing the probe.
func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := "healthy"
	for _, s := range checks {
		switch s {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			status = "degraded"
		}
	}
	return status
}

// HealthHandler serves the full health report.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	status := m.determineOverallStatus(checks)

	if status == "unhealthy" {
		resp := &middleware.ErrorResponse{Error: middleware.ErrorDetail{
			Code:      "SERVICE_UNAVAILABLE",
			Message:   "one or more health checks failed",
			RequestID: middleware.GetRequestID(r.Context()),
			Details:   map[string]any{"checks": checks},
		}}
		writeJSON(w, resp, http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, &HealthResponse{
		Status:  status,
		Version: m.version,
		Checks:  checks,
	}, http.StatusOK)
}

// LivenessHandler reports process liveness. It never runs dependency
// checks: a live process with a down dependency must not be restarted.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, &HealthResponse{Status: "healthy", Version: m.version}, http.StatusOK)
}

// ReadinessHandler reports whether the service can take traffic.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	m.HealthHandler(w, r)
}

// StartupHandler reports whether startup completed.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, &HealthResponse{Status: "healthy", Version: m.version}, http.StatusOK)
}

// globalHealthManager backs the package-level probe handlers.
var globalHealthManager *HealthManager

// InitHealthManager initializes the global health manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the global manager, or nil before init.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

// HealthHandler serves /health via the global manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		respondNotInitialized(w, r)
		return
	}
	globalHealthManager.HealthHandler(w, r)
}

// LivenessHandler serves /health/live via the global manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		respondNotInitialized(w, r)
		return
	}
	globalHealthManager.LivenessHandler(w, r)
}

// ReadinessHandler serves /health/ready via the global manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		respondNotInitialized(w, r)
		return
	}
	globalHealthManager.ReadinessHandler(w, r)
}

// StartupHandler serves /health/startup via the global manager.
func StartupHandler(w http.ResponseWriter, r *http.Request) {
	if globalHealthManager == nil {
		respondNotInitialized(w, r)
		return
	}
	globalHealthManager.StartupHandler(w, r)
}

func respondNotInitialized(w http.ResponseWriter, r *http.Request) {
	resp := &middleware.ErrorResponse{Error: middleware.ErrorDetail{
		Code:      "SERVICE_UNAVAILABLE",
		Message:   "health manager not initialized",
		RequestID: middleware.GetRequestID(r.Context()),
	}}
	writeJSON(w, resp, http.StatusServiceUnavailable)
}

// writeJSON writes v as JSON with the given status.
func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.Logger().Error("failed to encode response", zap.Error(err))
	}
}
