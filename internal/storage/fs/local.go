package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	tempPrefix = ".gemdrive-tmp-"
	fileMode   = 0o644
)

// Local stores files under a root directory on the local filesystem.
type Local struct {
	root string
}

var _ Backend = (*Local)(nil)

// NewLocal creates the root if needed and returns a Local backend.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("fs: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("fs: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(p string, dir bool) (string, error) {
	var (
		c   string
		err error
	)
	if dir {
		c, err = CleanDir(p)
	} else {
		c, err = CleanPath(p)
	}
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(c)), nil
}

func (l *Local) MkdirAll(_ context.Context, dir string) error {
	full, err := l.resolve(dir, true)
	if err != nil {
		return err
	}
	return os.MkdirAll(full, 0o755)
}

// Write streams r into a temp file next to p, fsyncs it and renames it over
// p, so readers see either the old or the new content.
func (l *Local) Write(ctx context.Context, p string, r io.Reader) error {
	full, err := l.resolve(p, false)
	if err != nil {
		return err
	}
	if fi, err := os.Stat(full); err == nil && fi.IsDir() {
		return ErrInvalidPath
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	if err := tmp.Chmod(fileMode); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return err
	}
	committed = true
	syncDir(dir)
	return nil
}

func (l *Local) Stat(_ context.Context, p string) (FileInfo, error) {
	full, err := l.resolve(p, false)
	if err != nil {
		return FileInfo{}, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return FileInfo{}, ErrNotFound
		}
		return FileInfo{}, err
	}
	return FileInfo{Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

func (l *Local) Delete(_ context.Context, p string) error {
	full, err := l.resolve(p, false)
	if err != nil {
		return err
	}
	fi, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if fi.IsDir() {
		return ErrInvalidPath
	}
	if err := os.Remove(full); err != nil {
		return err
	}
	syncDir(filepath.Dir(full))
	return nil
}

func (l *Local) Open(_ context.Context, p string) (io.ReadCloser, FileInfo, error) {
	full, err := l.resolve(p, false)
	if err != nil {
		return nil, FileInfo{}, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, FileInfo{}, ErrNotFound
		}
		return nil, FileInfo{}, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, FileInfo{}, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, FileInfo{}, ErrInvalidPath
	}
	return f, FileInfo{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// List returns the children of dir sorted by name. In-flight temp files are
// hidden.
func (l *Local) List(_ context.Context, dir string) ([]DirEntry, error) {
	full, err := l.resolve(dir, true)
	if err != nil {
		return nil, err
	}
	ents, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := make([]DirEntry, 0, len(ents))
	for _, e := range ents {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, DirEntry{Name: e.Name(), FileInfo: FileInfo{Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
