// Package archive stores completed research reports outside the job
// database.
//
// Archival is optional: the job store remains the source of truth, the
// archive is for sharing and retention. Two backends exist: a local
// directory and an S3-compatible bucket.
package archive

import "context"

// Archiver stores a finished report and returns its location
// (a filesystem path or an s3:// URI).
type Archiver interface {
	Store(ctx context.Context, jobID string, report string) (string, error)
}

// ArchiveError wraps backend failures with operation context.
type ArchiveError struct {
	Op      string // Operation that failed (e.g., "put", "mkdir")
	Backend string // Backend identifier ("file", "s3")
	Err     error
}

func (e *ArchiveError) Error() string {
	return "archive (" + e.Backend + "): " + e.Op + ": " + e.Err.Error()
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
