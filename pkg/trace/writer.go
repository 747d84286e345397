package trace

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer records research trace events.
//
// Implementations must be safe for concurrent use: the two engine
// branches run in parallel and both emit records.
type Writer interface {
	// WritePlan emits a query-planning record.
	WritePlan(ctx context.Context, strategy string, rec *PlanRecord) error

	// WriteSearch emits a web search record.
	WriteSearch(ctx context.Context, strategy string, rec *SearchRecord) error

	// WriteLearnings emits an extracted-learnings record.
	WriteLearnings(ctx context.Context, strategy string, rec *LearningsRecord) error

	// WriteMerge emits a strategy-merge record.
	WriteMerge(ctx context.Context, rec *MergeRecord) error

	// WriteReport emits a final report record.
	WriteReport(ctx context.Context, rec *ReportRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, strategy string, rec *ErrorRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w     io.Writer
	jobID string
	mu    sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL trace writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - jobID: Correlation ID for this research job
func NewJSONLWriter(w io.Writer, jobID string) *JSONLWriter {
	return &JSONLWriter{w: w, jobID: jobID}
}

// WritePlan emits a query-planning record.
func (jw *JSONLWriter) WritePlan(ctx context.Context, strategy string, rec *PlanRecord) error {
	return jw.writeRecord(ctx, TypePlan, strategy, rec)
}

// WriteSearch emits a web search record.
func (jw *JSONLWriter) WriteSearch(ctx context.Context, strategy string, rec *SearchRecord) error {
	return jw.writeRecord(ctx, TypeSearch, strategy, rec)
}

// WriteLearnings emits an extracted-learnings record.
func (jw *JSONLWriter) WriteLearnings(ctx context.Context, strategy string, rec *LearningsRecord) error {
	return jw.writeRecord(ctx, TypeLearnings, strategy, rec)
}

// WriteMerge emits a strategy-merge record.
func (jw *JSONLWriter) WriteMerge(ctx context.Context, rec *MergeRecord) error {
	return jw.writeRecord(ctx, TypeMerge, "merge", rec)
}

// WriteReport emits a final report record.
func (jw *JSONLWriter) WriteReport(ctx context.Context, rec *ReportRecord) error {
	return jw.writeRecord(ctx, TypeReport, "synthesis", rec)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, strategy string, rec *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, strategy, rec)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// This method holds the mutex for the entire operation to ensure
// atomic line writes. The record is written as a single line of
// JSON followed by a newline character.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType, strategy string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal the data payload first (outside the lock for better concurrency)
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	record := Record{
		Type:     recordType,
		TS:       time.Now().UTC(),
		JobID:    jw.jobID,
		Strategy: strategy,
		Data:     dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// Write the record followed by newline.
	// io.Writer is allowed to return n < len(p) with nil error; loop so
	// JSONL lines are never silently truncated.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// NopWriter discards all records. Used when tracing is disabled.
type NopWriter struct{}

func (NopWriter) WritePlan(context.Context, string, *PlanRecord) error           { return nil }
func (NopWriter) WriteSearch(context.Context, string, *SearchRecord) error       { return nil }
func (NopWriter) WriteLearnings(context.Context, string, *LearningsRecord) error { return nil }
func (NopWriter) WriteMerge(context.Context, *MergeRecord) error                 { return nil }
func (NopWriter) WriteReport(context.Context, *ReportRecord) error               { return nil }
func (NopWriter) WriteError(context.Context, string, *ErrorRecord) error         { return nil }
func (NopWriter) Close() error                                                   { return nil }

// Compile-time checks.
var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = NopWriter{}
)
