package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gemdrive/gemdrive/internal/eventlog"
)

var (
	// ErrInvalidFilter wraps CEL compile errors.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrReplay is returned when the backlog query fails mid-subscription.
	ErrReplay = errors.New("replay failed")
)

// Wire values for terminal error frames.
const (
	ErrorReplayFailed = "replay_failed"
	ErrorTooSlow      = "subscriber_too_slow"
	ErrorShutdown     = "server_shutdown"
)

// Frame is one item on a subscription stream: an event, the initial debug
// probe, or a terminal error.
type Frame struct {
	Event *eventlog.Event
	Debug string
	Error string
}

// MarshalJSON renders events as themselves and the other frames as
// {"debug":..} or {"error":..}.
func (f Frame) MarshalJSON() ([]byte, error) {
	switch {
	case f.Event != nil:
		return json.Marshal(f.Event)
	case f.Error != "":
		return json.Marshal(struct {
			Error string `json:"error"`
		}{f.Error})
	default:
		return json.Marshal(struct {
			Debug string `json:"debug"`
		}{f.Debug})
	}
}

// Sink is implemented by transports to receive a subscription's frames.
// Context is cancelled when the client goes away.
type Sink interface {
	Send(Frame) error
	Context() context.Context
	Flush() error
}

// SubscribeOptions controls where a subscription starts and what it sees.
type SubscribeOptions struct {
	// Since replays every logged event with Timestamp >= *Since before going
	// live. Nil means live only.
	Since *time.Time
	// Filter is an optional CEL expression evaluated per event.
	Filter string
	// Hello sends a {"debug":"init"} frame once the subscriber is registered.
	Hello bool
}

// BacklogOptions controls a finite log query.
type BacklogOptions struct {
	Since  time.Time
	Limit  int
	Filter string
	// Wait long-polls for up to this long when nothing matches yet.
	Wait time.Duration
}
