package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a research job.
//
// Numeric values are stable: they are persisted and exposed on the
// status endpoint.
type Status int

const (
	// StatusRunning indicates research is in progress.
	StatusRunning Status = 1
	// StatusComplete indicates a report was produced.
	StatusComplete Status = 2
	// StatusError indicates the run failed; the result holds an error report.
	StatusError Status = 3
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// DefaultRequestedBy is used when a job is created without an explicit
// requester identity.
const DefaultRequestedBy = "anonymous"

// ErrNotFound is returned when no job exists with the given ID.
var ErrNotFound = errors.New("job not found")

// ErrAlreadyFinished is returned when a terminal transition is attempted
// on a job that already reached a terminal state. Results are write-once.
var ErrAlreadyFinished = errors.New("job already finished")

// QuestionAnswer is one clarifying exchange recorded on a job.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
}

// Job is a persisted research job record.
type Job struct {
	ID           string
	Query        string
	Breadth      int
	Depth        int
	Questions    []QuestionAnswer
	DirectSearch bool
	RequestedBy  string
	Status       Status
	Result       *string
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// HasResult reports whether a report (or error report) has been written.
func (j *Job) HasResult() bool {
	return j.Result != nil && *j.Result != ""
}

// CreateParams describes a new research job.
type CreateParams struct {
	Query        string
	Breadth      int
	Depth        int
	Questions    []QuestionAnswer
	DirectSearch bool
	RequestedBy  string
}

// Create inserts a new job in running status and returns it.
func (s *Store) Create(ctx context.Context, p CreateParams) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	requestedBy := p.RequestedBy
	if requestedBy == "" {
		requestedBy = DefaultRequestedBy
	}
	questions := p.Questions
	if questions == nil {
		questions = []QuestionAnswer{}
	}
	questionsJSON, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}

	now := time.Now().UTC()
	job := &Job{
		ID:           uuid.NewString(),
		Query:        p.Query,
		Breadth:      p.Breadth,
		Depth:        p.Depth,
		Questions:    questions,
		DirectSearch: p.DirectSearch,
		RequestedBy:  requestedBy,
		Status:       StatusRunning,
		CreatedAt:    now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research_jobs
		 (job_id, query, breadth, depth, questions, direct_search, requested_by, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Query, job.Breadth, job.Depth, string(questionsJSON),
		boolToInt(job.DirectSearch), job.RequestedBy, int(job.Status), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	return job, nil
}

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, query, breadth, depth, questions, direct_search,
		        requested_by, status, result, created_at, completed_at
		 FROM research_jobs WHERE job_id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest-first. When requestedBy is non-empty, only
// that requester's jobs are returned.
func (s *Store) List(ctx context.Context, requestedBy string) ([]Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	query := `SELECT job_id, query, breadth, depth, questions, direct_search,
	                 requested_by, status, result, created_at, completed_at
	          FROM research_jobs`
	args := []any{}
	if requestedBy != "" {
		query += ` WHERE requested_by = ?`
		args = append(args, requestedBy)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// Complete transitions a running job to complete and writes the report.
//
// The transition is guarded in SQL: only a running job with no result can
// be completed, so a finished job can never be overwritten.
func (s *Store) Complete(ctx context.Context, id, report string) error {
	return s.finish(ctx, id, StatusComplete, report)
}

// Fail transitions a running job to error and writes the error report.
func (s *Store) Fail(ctx context.Context, id, errorReport string) error {
	return s.finish(ctx, id, StatusError, errorReport)
}

func (s *Store) finish(ctx context.Context, id string, status Status, result string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE research_jobs
		 SET status = ?, result = ?, completed_at = ?
		 WHERE job_id = ? AND status = ? AND result IS NULL`,
		int(status), result, now.Format(time.RFC3339Nano), id, int(StatusRunning))
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing job from a double finish.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: %s", ErrAlreadyFinished, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job           Job
		questionsJSON string
		directSearch  int
		status        int
		result        sql.NullString
		createdAt     string
		completedAt   sql.NullString
	)

	err := row.Scan(&job.ID, &job.Query, &job.Breadth, &job.Depth,
		&questionsJSON, &directSearch, &job.RequestedBy, &status,
		&result, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(questionsJSON), &job.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	job.DirectSearch = directSearch != 0
	job.Status = Status(status)
	if result.Valid {
		job.Result = &result.String
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		job.CompletedAt = &t
	}

	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
