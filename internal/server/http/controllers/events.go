package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/registry"
	"github.com/gemdrive/gemdrive/internal/runtime"
	feedsvc "github.com/gemdrive/gemdrive/internal/services/feed"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// maxLogWait caps ?wait_ms on the backlog endpoint.
const maxLogWait = 30 * time.Second

// EventsController serves the mutation feed.
type EventsController struct {
	rt       *runtime.Runtime
	logger   logpkg.Logger
	upgrader websocket.Upgrader
}

func NewEventsController(rt *runtime.Runtime, logger logpkg.Logger) *EventsController {
	origin := rt.Config().CORSOrigin
	return &EventsController{
		rt:     rt,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return origin == "" || origin == "*" || r.Header.Get("Origin") == origin
			},
		},
	}
}

func (c *EventsController) RegisterRoutes(r chi.Router) {
	r.Get("/gemdrive/events/", c.handleStream)
	r.Get("/gemdrive/events/ws", c.handleWebSocket)
	r.Get("/gemdrive/events/log", c.handleLog)
}

func (c *EventsController) subscribeOptions(w http.ResponseWriter, r *http.Request) (feedsvc.SubscribeOptions, bool) {
	q := r.URL.Query()
	since, err := parseTimestamp(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return feedsvc.SubscribeOptions{}, false
	}
	filter := q.Get("filter")
	if err := feedsvc.ValidateFilter(filter); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return feedsvc.SubscribeOptions{}, false
	}
	return feedsvc.SubscribeOptions{Since: since, Filter: filter, Hello: true}, true
}

// handleStream serves the NDJSON feed. The first line is {"debug":"init"}
// once the subscriber is registered.
func (c *EventsController) handleStream(w http.ResponseWriter, r *http.Request) {
	opts, ok := c.subscribeOptions(w, r)
	if !ok {
		return
	}
	sink := newNDJSONSink(w, r)
	err := c.rt.Feed().Subscribe(opts, sink)
	if err != nil && !sink.wrote {
		if errors.Is(err, registry.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting_down")
			return
		}
		writeError(w, http.StatusInternalServerError, "subscribe_failed")
		return
	}
	c.logEnd(r.Context(), err)
}

// handleWebSocket serves the same feed as one text message per frame.
func (c *EventsController) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	opts, ok := c.subscribeOptions(w, r)
	if !ok {
		return
	}
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// The read side only watches for the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	sink := &wsSink{conn: conn, ctx: ctx}
	err = c.rt.Feed().Subscribe(opts, sink)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		sink.close(websocket.CloseNormalClosure, "")
	case errors.Is(err, registry.ErrClosed):
		sink.close(websocket.CloseGoingAway, "shutting down")
	default:
		sink.close(websocket.CloseInternalServerErr, err.Error())
	}
	c.logEnd(ctx, err)
}

// handleLog returns a finite JSON array of logged events.
func (c *EventsController) handleLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, err := parseTimestamp(q.Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := feedsvc.BacklogOptions{Limit: parseLimit(q.Get("limit")), Filter: q.Get("filter")}
	if since != nil {
		opts.Since = *since
	}
	if ms, err := strconv.Atoi(q.Get("wait_ms")); err == nil && ms > 0 {
		opts.Wait = min(time.Duration(ms)*time.Millisecond, maxLogWait)
	}
	evs, err := c.rt.Feed().Backlog(r.Context(), opts)
	if err != nil {
		if errors.Is(err, feedsvc.ErrInvalidFilter) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if r.Context().Err() != nil {
			return
		}
		c.logger.WithContext(r.Context()).Error("backlog query failed", logpkg.Err(err))
		writeError(w, http.StatusInternalServerError, "query_failed")
		return
	}
	if evs == nil {
		evs = []eventlog.Event{}
	}
	writeJSON(w, evs)
}

func (c *EventsController) logEnd(ctx context.Context, err error) {
	l := c.logger.WithContext(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		l.Debug("subscription ended")
	case errors.Is(err, registry.ErrSlowSubscriber), errors.Is(err, registry.ErrClosed):
		l.Info("subscription ended", logpkg.Err(err))
	default:
		l.Warn("subscription failed", logpkg.Err(err))
	}
}
