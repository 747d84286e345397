// Package trace provides JSONL tracing for research runs.
//
// A run emits typed record envelopes at pipeline checkpoints: planned
// queries, searches, learnings, merges, and the final synthesis. Each
// line is a self-contained JSON object that can be parsed independently,
// which makes a trace file greppable and replayable.
package trace

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: fathom.<type>.v<version>
const (
	// TypePlan identifies query-planning records.
	TypePlan = "fathom.plan.v1"

	// TypeSearch identifies web search records.
	TypeSearch = "fathom.search.v1"

	// TypeLearnings identifies extracted-learnings records.
	TypeLearnings = "fathom.learnings.v1"

	// TypeMerge identifies strategy-merge records.
	TypeMerge = "fathom.merge.v1"

	// TypeReport identifies final report records.
	TypeReport = "fathom.report.v1"

	// TypeError identifies error records.
	TypeError = "fathom.error.v1"
)

// Record is the envelope for all JSONL trace output.
//
// Each line contains a Record with a type-specific payload in the Data
// field. The type field determines how to interpret the payload.
type Record struct {
	// Type identifies the record type (e.g., "fathom.search.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this research job.
	JobID string `json:"job_id"`

	// Strategy identifies the producing branch ("deep", "grounded",
	// "merge", "synthesis").
	Strategy string `json:"strategy,omitempty"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// PlanRecord is the data payload for a query-planning step.
type PlanRecord struct {
	// Goal is the research goal the planner worked from.
	Goal string `json:"goal"`

	// Depth is the remaining recursion budget at this level.
	Depth int `json:"depth"`

	// Breadth is the fan-out budget at this level.
	Breadth int `json:"breadth"`

	// Queries are the planned search queries.
	Queries []string `json:"queries"`
}

// SearchRecord is the data payload for one web search.
type SearchRecord struct {
	// Query is the search query issued.
	Query string `json:"query"`

	// URLs are the result pages that were fetched.
	URLs []string `json:"urls"`

	// Skipped counts result pages that failed to fetch.
	Skipped int `json:"skipped,omitempty"`
}

// LearningsRecord is the data payload for a summarization step.
type LearningsRecord struct {
	// Query is the search query the learnings came from.
	Query string `json:"query"`

	// Learnings are the extracted atomic findings.
	Learnings []string `json:"learnings"`

	// FollowUps are the follow-up questions proposed.
	FollowUps []string `json:"follow_ups,omitempty"`
}

// MergeRecord is the data payload for the strategy merge.
type MergeRecord struct {
	// DeepLearnings counts learnings from the recursive engine.
	DeepLearnings int `json:"deep_learnings"`

	// GroundedLearnings counts learnings from the grounded engine.
	GroundedLearnings int `json:"grounded_learnings"`

	// MergedLearnings counts unique learnings after dedup.
	MergedLearnings int `json:"merged_learnings"`

	// MergedSources counts unique source URLs after dedup.
	MergedSources int `json:"merged_sources"`
}

// ReportRecord is the data payload for the final synthesis.
type ReportRecord struct {
	// Chars is the report length.
	Chars int `json:"chars"`

	// SourcesAppended is true when the synthesizer had to append a
	// sources section because the model omitted one.
	SourcesAppended bool `json:"sources_appended"`

	// Duration is the total run duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the run, matching
// the degrade-and-continue semantics of the pipeline branches.
type ErrorRecord struct {
	// Stage identifies where the failure occurred.
	Stage string `json:"stage"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Query is the query involved, if applicable.
	Query string `json:"query,omitempty"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("trace writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "trace: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
