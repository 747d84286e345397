package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/fathomlabs/fathom/internal/errors"
	"github.com/fathomlabs/fathom/pkg/jobstore"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Research budgets accepted on job creation. Zero means default.
const (
	MinBudget      = 1
	MaxBudget      = 5
	DefaultBreadth = 4
	DefaultDepth   = 2
	MaxQuestions   = 5
)

// JobRunner executes a research job in the background. The orchestrator
// satisfies it; tests substitute fakes.
type JobRunner interface {
	Run(ctx context.Context, job *jobstore.Job) error
}

// JobsHandler serves the research job endpoints.
type JobsHandler struct {
	store  *jobstore.Store
	runner JobRunner
	logger *zap.Logger
}

// NewJobsHandler creates the jobs handler.
func NewJobsHandler(store *jobstore.Store, runner JobRunner, logger *zap.Logger) *JobsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobsHandler{store: store, runner: runner, logger: logger}
}

// CreateJobRequest is the POST /api/jobs body.
type CreateJobRequest struct {
	Query        string                    `json:"query"`
	Breadth      int                       `json:"breadth,omitempty"`
	Depth        int                       `json:"depth,omitempty"`
	Questions    []jobstore.QuestionAnswer `json:"questions,omitempty"`
	DirectSearch bool                      `json:"direct_search,omitempty"`
	RequestedBy  string                    `json:"requested_by,omitempty"`
}

// validate checks budgets and fills defaults.
func (req *CreateJobRequest) validate() *apperrors.HTTPError {
	if req.Query == "" {
		return apperrors.NewValidationError("query is required", nil)
	}
	if req.Breadth == 0 {
		req.Breadth = DefaultBreadth
	}
	if req.Depth == 0 {
		req.Depth = DefaultDepth
	}
	if req.Breadth < MinBudget || req.Breadth > MaxBudget {
		return apperrors.NewValidationError("breadth out of range",
			map[string]any{"field": "breadth", "value": req.Breadth, "min": MinBudget, "max": MaxBudget})
	}
	if req.Depth < MinBudget || req.Depth > MaxBudget {
		return apperrors.NewValidationError("depth out of range",
			map[string]any{"field": "depth", "value": req.Depth, "min": MinBudget, "max": MaxBudget})
	}
	if len(req.Questions) > MaxQuestions {
		return apperrors.NewValidationError("too many clarifying questions",
			map[string]any{"field": "questions", "count": len(req.Questions), "max": MaxQuestions})
	}
	for _, qa := range req.Questions {
		if qa.Question == "" {
			return apperrors.NewValidationError("question text is required",
				map[string]any{"field": "questions"})
		}
	}
	return nil
}

// CreateJobResponse is the 202 body for a created job.
type CreateJobResponse struct {
	ID string `json:"id"`
}

// Create handles POST /api/jobs: persist the job and start the research
// run in the background. The response returns immediately; clients poll
// the status endpoint.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewValidationError("invalid request body", nil))
		return
	}
	if verr := req.validate(); verr != nil {
		respondWithError(w, r, verr)
		return
	}

	job, err := h.store.Create(r.Context(), jobstore.CreateParams{
		Query:        req.Query,
		Breadth:      req.Breadth,
		Depth:        req.Depth,
		Questions:    req.Questions,
		DirectSearch: req.DirectSearch,
		RequestedBy:  req.RequestedBy,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	// Fire and forget: the run outlives the request, so it gets its own
	// context. The orchestrator persists the terminal state either way.
	go func() {
		if runErr := h.runner.Run(context.Background(), job); runErr != nil {
			h.logger.Error("background research run failed",
				zap.String("job_id", job.ID), zap.Error(runErr))
		}
	}()

	writeJSON(w, &CreateJobResponse{ID: job.ID}, http.StatusAccepted)
}

// JobStatusResponse is the polling body. It never carries the result:
// clients fetch the full job once completed is true.
type JobStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
	HasResult bool   `json:"has_result"`
}

// Status handles GET /api/jobs/{id}/status.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	writeJSON(w, &JobStatusResponse{
		ID:        job.ID,
		Status:    job.Status.String(),
		Completed: job.Status.Terminal(),
		HasResult: job.HasResult(),
	}, http.StatusOK)
}

// JobResponse is the full job body.
type JobResponse struct {
	ID           string                    `json:"id"`
	Query        string                    `json:"query"`
	Breadth      int                       `json:"breadth"`
	Depth        int                       `json:"depth"`
	Questions    []jobstore.QuestionAnswer `json:"questions"`
	DirectSearch bool                      `json:"direct_search"`
	RequestedBy  string                    `json:"requested_by"`
	Status       string                    `json:"status"`
	Result       *string                   `json:"result,omitempty"`
	CreatedAt    string                    `json:"created_at"`
	CompletedAt  *string                   `json:"completed_at,omitempty"`
}

// Get handles GET /api/jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, jobResponse(job), http.StatusOK)
}

// List handles GET /api/jobs, newest first, optionally filtered by the
// requested_by query parameter. Results are omitted from list bodies.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.List(r.Context(), r.URL.Query().Get("requested_by"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	out := make([]*JobResponse, 0, len(jobs))
	for i := range jobs {
		resp := jobResponse(&jobs[i])
		resp.Result = nil
		out = append(out, resp)
	}
	writeJSON(w, out, http.StatusOK)
}

func (h *JobsHandler) lookup(w http.ResponseWriter, r *http.Request) (*jobstore.Job, bool) {
	id := chi.URLParam(r, "id")
	job, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			respondWithError(w, r, apperrors.NewNotFoundError("job not found"))
		} else {
			respondWithError(w, r, err)
		}
		return nil, false
	}
	return job, true
}

func jobResponse(job *jobstore.Job) *JobResponse {
	resp := &JobResponse{
		ID:           job.ID,
		Query:        job.Query,
		Breadth:      job.Breadth,
		Depth:        job.Depth,
		Questions:    job.Questions,
		DirectSearch: job.DirectSearch,
		RequestedBy:  job.RequestedBy,
		Status:       job.Status.String(),
		CreatedAt:    job.CreatedAt.Format(time.RFC3339Nano),
	}
	if job.Result != nil {
		resp.Result = job.Result
	}
	if job.CompletedAt != nil {
		s := job.CompletedAt.Format(time.RFC3339Nano)
		resp.CompletedAt = &s
	}
	return resp
}
