package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	feedsvc "github.com/gemdrive/gemdrive/internal/services/feed"
)

// ndjsonSink writes one JSON document per line.
type ndjsonSink struct {
	w     http.ResponseWriter
	r     *http.Request
	enc   *json.Encoder
	wrote bool
}

func newNDJSONSink(w http.ResponseWriter, r *http.Request) *ndjsonSink {
	return &ndjsonSink{w: w, r: r, enc: json.NewEncoder(w)}
}

func (s *ndjsonSink) Send(f feedsvc.Frame) error {
	if !s.wrote {
		s.w.Header().Set("Content-Type", "application/x-ndjson")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.wrote = true
	}
	// Encode appends the newline.
	return s.enc.Encode(f)
}

func (s *ndjsonSink) Context() context.Context { return s.r.Context() }

func (s *ndjsonSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

const wsWriteTimeout = 10 * time.Second

// wsSink sends each frame as one text message.
type wsSink struct {
	conn *websocket.Conn
	ctx  context.Context
	mu   sync.Mutex
}

func (s *wsSink) Send(f feedsvc.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.conn.WriteJSON(f)
}

func (s *wsSink) Context() context.Context { return s.ctx }

// Flush is a no-op: every WebSocket message is written through.
func (s *wsSink) Flush() error { return nil }

func (s *wsSink) close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
