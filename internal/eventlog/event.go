package eventlog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates mutation events.
type Kind string

const (
	KindWrite  Kind = "write"
	KindDelete Kind = "delete"
)

// Event is one logged mutation. Stored events are never modified.
//
// Kind is serialized as "type" to match the persisted column name used by
// existing feed consumers.
type Event struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Kind      Kind      `json:"type"`
	// Size is the resource length after the mutation; 0 for deletes.
	Size int64 `json:"size"`
	// ModTime is the backend-reported modification time (RFC3339Nano); empty for deletes.
	ModTime string `json:"modTime"`
	Owner   string `json:"owner"`
	// Offset is reserved for partial writes and is always 0.
	Offset int64 `json:"offset"`
	// Length is the number of bytes the sampler observed.
	Length int64 `json:"length"`
	// Content is the inline text preview, nil when omitted.
	Content *string `json:"content"`
}

// ErrInvalidEvent is returned by Append for events that fail Validate.
var ErrInvalidEvent = errors.New("eventlog: invalid event")

// Validate checks the structural rules every stored event obeys.
func (e Event) Validate() error {
	if e.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidEvent)
	}
	switch e.Kind {
	case KindWrite:
	case KindDelete:
		if e.Size != 0 || e.ModTime != "" || e.Content != nil {
			return fmt.Errorf("%w: delete carries write fields", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.Offset != 0 {
		return fmt.Errorf("%w: non-zero offset", ErrInvalidEvent)
	}
	return nil
}

// Store is a durable, append-only, time-ordered event store.
//
// Append assigns Seq and Timestamp; timestamps never decrease in Seq order.
// QueryFrom returns events with Timestamp >= since in ascending order, bounded
// by the appends that completed before the call (limit <= 0 means no limit).
// QueryAfter is QueryFrom keyed by position: events with Seq > afterSeq.
// Head reports the Seq of the newest committed event, 0 when empty.
// WaitForAppend blocks until a later Append, the timeout, or ctx expiry and
// reports whether an append happened.
type Store interface {
	Append(ctx context.Context, ev Event) (Event, error)
	QueryFrom(ctx context.Context, since time.Time, limit int) ([]Event, error)
	QueryAfter(ctx context.Context, afterSeq uint64, limit int) ([]Event, error)
	Head(ctx context.Context) (uint64, error)
	WaitForAppend(ctx context.Context, timeout time.Duration) bool
	Close() error
}

// StrPtr is a convenience for building Content values.
func StrPtr(s string) *string { return &s }
