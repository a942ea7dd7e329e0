package transports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gemdrive/gemdrive/internal/eventlog"
)

var (
	// ErrUnauthorized is returned when the server rejects the token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned by Fetch for missing paths.
	ErrNotFound = errors.New("not found")
)

// TerminalError is the server's reason for ending a feed.
type TerminalError struct {
	Code string
}

func (e *TerminalError) Error() string { return fmt.Sprintf("feed ended by server: %s", e.Code) }

// TailRequest describes a feed subscription.
type TailRequest struct {
	// Since replays from this timestamp; nil means live only.
	Since  *time.Time
	Filter string
}

// LogRequest describes a finite backlog query.
type LogRequest struct {
	Since  time.Time
	Limit  int
	Filter string
	Wait   time.Duration
}

// FeedTransport abstracts the transport used by the CLI (HTTP or gRPC).
// Tail returns nil when the stream ends cleanly or onEvent returns ErrStop.
type FeedTransport interface {
	Tail(ctx context.Context, req TailRequest, onEvent func(eventlog.Event) error) error
}

// ErrStop can be returned by an onEvent callback to end Tail early.
var ErrStop = errors.New("stop")
