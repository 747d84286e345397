// Package errors defines the failure taxonomy for the research pipeline
// and the JSON error envelope used by the HTTP surface.
//
// Three classes of pipeline failure exist, with different blast radii:
//
//   - GenerationError: a single LLM call failed. The affected component
//     degrades to an empty result and the pipeline continues.
//   - SearchError: a web search failed. The branch that issued the search
//     is discarded and the pipeline continues with other branches.
//   - OrchestrationError: the run as a whole failed. The job is marked
//     errored and an error report is persisted before the failure is
//     propagated to the caller.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// GenerationError indicates an LLM generation call failed.
//
// Op identifies the generation site (e.g. "plan_queries", "summarize",
// "synthesize_report", "grounded_search").
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError wraps err as a generation failure at the given site.
func NewGenerationError(op string, err error) *GenerationError {
	return &GenerationError{Op: op, Err: err}
}

// SearchError indicates a web search failed.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search failed (%q): %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// NewSearchError wraps err as a search failure for the given query.
func NewSearchError(query string, err error) *SearchError {
	return &SearchError{Query: query, Err: err}
}

// OrchestrationError indicates the research run failed as a whole.
type OrchestrationError struct {
	JobID string
	Err   error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("research job %s failed: %v", e.JobID, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// NewOrchestrationError wraps err as a whole-run failure for the given job.
func NewOrchestrationError(jobID string, err error) *OrchestrationError {
	return &OrchestrationError{JobID: jobID, Err: err}
}

// IsGeneration reports whether any error in err's chain is a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// IsSearch reports whether any error in err's chain is a SearchError.
func IsSearch(err error) bool {
	var se *SearchError
	return errors.As(err, &se)
}

// IsOrchestration reports whether any error in err's chain is an OrchestrationError.
func IsOrchestration(err error) bool {
	var oe *OrchestrationError
	return errors.As(err, &oe)
}

// WrapInternal wraps an internal error with a message. The context is
// accepted for call-site symmetry with request-scoped wrappers; it is not
// consulted today.
func WrapInternal(_ context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// NewExternalServiceError reports an unavailable external dependency.
func NewExternalServiceError(msg string) error {
	return fmt.Errorf("external service unavailable: %s", msg)
}
