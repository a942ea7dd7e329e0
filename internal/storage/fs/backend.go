package fs

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

//go:generate mockgen -source=backend.go -destination=mocks/backend_mock.go -package=mocks Backend

var (
	// ErrNotFound is returned when a path has no stored file.
	ErrNotFound = errors.New("fs: not found")
	// ErrInvalidPath is returned for empty, escaping or directory paths.
	ErrInvalidPath = errors.New("fs: invalid path")
)

// FileInfo is what Stat reports about a stored file.
type FileInfo struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// DirEntry is one child in a directory listing.
type DirEntry struct {
	Name string
	FileInfo
}

// Backend is the storage surface the pipeline drives. Write replaces any
// prior content at p and returns only after the data is flushed.
type Backend interface {
	MkdirAll(ctx context.Context, dir string) error
	Write(ctx context.Context, p string, r io.Reader) error
	Stat(ctx context.Context, p string) (FileInfo, error)
	Delete(ctx context.Context, p string) error
	Open(ctx context.Context, p string) (io.ReadCloser, FileInfo, error)
	List(ctx context.Context, dir string) ([]DirEntry, error)
}

// CleanPath normalizes a logical path to its rooted, slash-separated form.
// The root itself is not a valid file path.
func CleanPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) || strings.Contains(p, "\\") {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", ErrInvalidPath
		}
	}
	c := path.Clean("/" + p)
	if c == "/" {
		return "", ErrInvalidPath
	}
	return c, nil
}

// CleanDir is CleanPath for directories; the root is allowed.
func CleanDir(p string) (string, error) {
	if strings.TrimSpace(strings.Trim(p, "/")) == "" {
		return "/", nil
	}
	return CleanPath(p)
}

// Parent returns the directory containing p.
func Parent(p string) string { return path.Dir(p) }
