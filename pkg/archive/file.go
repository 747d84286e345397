package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileArchiver writes reports as markdown files under a local directory.
type FileArchiver struct {
	dir string
}

// NewFile creates a file archiver rooted at dir. The directory is
// created on first use.
func NewFile(dir string) (*FileArchiver, error) {
	if dir == "" {
		return nil, &ArchiveError{Op: "new", Backend: "file", Err: fmt.Errorf("directory is required")}
	}
	return &FileArchiver{dir: dir}, nil
}

// Store writes the report to <dir>/<jobID>.md.
//
// The write goes through a temp file plus rename so a crash mid-write
// never leaves a truncated report behind.
func (a *FileArchiver) Store(ctx context.Context, jobID string, report string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// #nosec G301 -- report directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return "", &ArchiveError{Op: "mkdir", Backend: "file", Err: err}
	}

	path := filepath.Join(a.dir, jobID+".md")
	tmp, err := os.CreateTemp(a.dir, jobID+".*.tmp")
	if err != nil {
		return "", &ArchiveError{Op: "create_temp", Backend: "file", Err: err}
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(report); err != nil {
		_ = tmp.Close()
		return "", &ArchiveError{Op: "write", Backend: "file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &ArchiveError{Op: "close", Backend: "file", Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", &ArchiveError{Op: "rename", Backend: "file", Err: err}
	}

	return path, nil
}

// Compile-time check that FileArchiver implements Archiver.
var _ Archiver = (*FileArchiver)(nil)
