package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/gemdrive/gemdrive/internal/eventlog"
)

// celFilter wraps a compiled CEL program shared by live delivery and backlog
// queries. When disabled, Eval always returns true.
//
// Variables: seq, ts_ms, now_ms (int); path, kind, owner, mod_time, content
// (string); size, length (int); has_content (bool).
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("seq", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("path", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("mod_time", cel.StringType),
		cel.Variable("owner", cel.StringType),
		cel.Variable("length", cel.IntType),
		cel.Variable("content", cel.StringType),
		cel.Variable("has_content", cel.BoolType),
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return celFilter{}, fmt.Errorf("%w: expression must be bool, got %s", ErrInvalidFilter, ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return celFilter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval reports whether ev passes. Evaluation errors count as a miss.
func (f celFilter) Eval(ev eventlog.Event) bool {
	if !f.enabled {
		return true
	}
	content := ""
	if ev.Content != nil {
		content = *ev.Content
	}
	out, _, err := f.prog.Eval(map[string]any{
		"seq":         int64(ev.Seq),
		"ts_ms":       ev.Timestamp.UnixMilli(),
		"path":        ev.Path,
		"kind":        string(ev.Kind),
		"size":        ev.Size,
		"mod_time":    ev.ModTime,
		"owner":       ev.Owner,
		"length":      ev.Length,
		"content":     content,
		"has_content": ev.Content != nil,
		"now_ms":      time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// ValidateFilter reports whether expr compiles to a boolean CEL program.
// Transports call it before committing to a streaming response.
func ValidateFilter(expr string) error {
	_, err := newCELFilter(expr)
	return err
}
