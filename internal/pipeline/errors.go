package pipeline

import (
	"errors"
	"fmt"
)

// State names a pipeline stage.
type State string

const (
	StateIdle          State = "idle"
	StatePersisting    State = "persisting"
	StateStating       State = "stating"
	StateLoggingAppend State = "logging_append"
	StateBroadcasting  State = "broadcasting"
	StateDone          State = "done"
)

// Error kinds, matched with errors.Is.
var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
	ErrStat        = errors.New("stat failure")
	ErrLogAppend   = errors.New("log append failure")
)

// Error reports which stage failed, the failure kind and the cause.
type Error struct {
	State State
	Kind  error
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("pipeline %s %s: %v", e.State, e.Path, e.Kind)
	}
	return fmt.Sprintf("pipeline %s %s: %v: %v", e.State, e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fail(state State, kind error, path string, err error) *Error {
	return &Error{State: state, Kind: kind, Path: path, Err: err}
}
