package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gemdrive/gemdrive/internal/auth"
	"github.com/gemdrive/gemdrive/internal/pipeline"
	"github.com/gemdrive/gemdrive/internal/runtime"
	"github.com/gemdrive/gemdrive/internal/storage/fs"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// FilesController reads, writes, deletes and lists stored files. Writes and
// deletes go through the mutation pipeline.
type FilesController struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
}

func NewFilesController(rt *runtime.Runtime, logger logpkg.Logger) *FilesController {
	return &FilesController{rt: rt, logger: logger}
}

func (c *FilesController) RegisterRoutes(r chi.Router) {
	r.Get("/gemdrive/*", c.handleList)
	r.Get("/*", c.handleGet)
	r.Post("/*", c.handlePost)
	r.Put("/*", c.handleWrite)
	r.Delete("/*", c.handleDelete)
}

func (c *FilesController) handleGet(w http.ResponseWriter, r *http.Request) {
	rc, info, err := c.rt.Files().Open(r.Context(), r.URL.Path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotFound), errors.Is(err, fs.ErrInvalidPath):
			http.Error(w, "Not found", http.StatusNotFound)
		default:
			c.logger.WithContext(r.Context()).Error("open failed", logpkg.Str("path", r.URL.Path), logpkg.Err(err))
			writeError(w, http.StatusInternalServerError, "read_failed")
		}
		return
	}
	defer rc.Close()
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, r.URL.Path, info.ModTime, rs)
		return
	}
	w.Header().Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	_, _ = io.Copy(w, rc)
}

// reservedPrefix holds service routes; files cannot be stored under it.
const reservedPrefix = "/gemdrive/"

func reserved(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Path+"/" == reservedPrefix || strings.HasPrefix(r.URL.Path, reservedPrefix) {
		writeError(w, http.StatusMethodNotAllowed, "reserved_path")
		return true
	}
	return false
}

// handlePost writes, or deletes with ?method=delete.
func (c *FilesController) handlePost(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("method") == "delete" {
		c.handleDelete(w, r)
		return
	}
	c.handleWrite(w, r)
}

func (c *FilesController) handleWrite(w http.ResponseWriter, r *http.Request) {
	if reserved(w, r) {
		return
	}
	ev, err := c.rt.Pipeline().Write(r.Context(), r.URL.Path, auth.OwnerFromContext(r.Context()), r.Body)
	if err != nil {
		c.writeMutationError(w, r, err)
		return
	}
	writeJSON(w, ev)
}

func (c *FilesController) handleDelete(w http.ResponseWriter, r *http.Request) {
	if reserved(w, r) {
		return
	}
	ev, err := c.rt.Pipeline().Delete(r.Context(), r.URL.Path, auth.OwnerFromContext(r.Context()))
	if err != nil {
		c.writeMutationError(w, r, err)
		return
	}
	writeJSON(w, ev)
}

func (c *FilesController) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidPath):
		writeError(w, http.StatusBadRequest, "invalid_path")
	case errors.Is(err, pipeline.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, pipeline.ErrLogAppend):
		// already logged at error by the pipeline
		writeError(w, http.StatusInternalServerError, "mutation_not_logged")
	case errors.Is(err, pipeline.ErrStat):
		c.logger.WithContext(r.Context()).Warn("stat after write failed", logpkg.Str("path", r.URL.Path), logpkg.Err(err))
		writeError(w, http.StatusInternalServerError, "stat_failed")
	default:
		c.logger.WithContext(r.Context()).Warn("mutation failed", logpkg.Str("path", r.URL.Path), logpkg.Err(err))
		writeError(w, http.StatusInternalServerError, "persist_failed")
	}
}

// handleList serves GET /gemdrive/{dir}/ as {"name":{size,modTime},"sub/":{...}}.
func (c *FilesController) handleList(w http.ResponseWriter, r *http.Request) {
	rest := chi.URLParam(r, "*")
	if rest != "" && !strings.HasSuffix(rest, "/") {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	dir, err := fs.CleanDir(rest)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_path")
		return
	}
	entries, err := c.rt.Files().List(r.Context(), dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotFound) || errors.Is(err, fs.ErrInvalidPath) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		c.logger.WithContext(r.Context()).Error("list failed", logpkg.Str("dir", dir), logpkg.Err(err))
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	out := make(map[string]listingEntry, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		out[name] = listingEntry{Size: e.Size, ModTime: e.ModTime.UTC()}
	}
	writeJSON(w, out)
}
