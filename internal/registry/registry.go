// Package registry tracks live feed subscribers and fans committed events
// out to their queues.
//
// Broadcast only enqueues; a dispatcher goroutine delivers events one at a
// time, in the order they were broadcast, to every subscriber that was
// registered when Broadcast was called. A subscriber whose queue stays full
// for longer than the send timeout is dropped rather than skipped, so the
// events it does receive are always a gap-free prefix of the feed.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/metrics"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

var (
	// ErrSlowSubscriber is the drop reason for subscribers that fell behind.
	ErrSlowSubscriber = errors.New("subscriber too slow")
	// ErrClosed is returned by Register after Close, and is the end reason
	// for subscribers still connected at shutdown.
	ErrClosed = errors.New("registry closed")
)

const (
	DefaultBuffer      = 128
	DefaultSendTimeout = 250 * time.Millisecond
)

// Options configures a Registry.
type Options struct {
	// Buffer is the per-subscriber queue capacity.
	Buffer int
	// SendTimeout bounds the wait on a full queue before dropping.
	SendTimeout time.Duration
	Logger      logpkg.Logger
	Metrics     *metrics.Metrics
}

// Subscription is one registered delivery slot. Events arrive on Events()
// until Done() is closed; Err() then reports why.
type Subscription struct {
	ID string

	// from is the broadcast count at registration; earlier broadcasts are
	// not delivered to this slot.
	from     uint64
	queue    chan eventlog.Event
	done     chan struct{}
	doneOnce sync.Once
	err      error
}

// Events is the ordered queue of delivered events.
func (s *Subscription) Events() <-chan eventlog.Event { return s.queue }

// Done is closed when the subscription ends for any reason.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err is nil after Deregister, ErrSlowSubscriber after a drop and ErrClosed
// at shutdown. Only meaningful once Done is closed.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

func (s *Subscription) end(err error) bool {
	ended := false
	s.doneOnce.Do(func() {
		s.err = err
		close(s.done)
		ended = true
	})
	return ended
}

// Registry is the set of live subscribers.
type Registry struct {
	buffer      int
	sendTimeout time.Duration
	logger      logpkg.Logger
	metrics     *metrics.Metrics

	mu      sync.RWMutex
	subs    map[string]*Subscription
	pending []broadcast
	sent    uint64
	closed  bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

type broadcast struct {
	n  uint64
	ev eventlog.Event
}

// New starts a Registry and its dispatcher. Call Close to stop it.
func New(opts Options) *Registry {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	r := &Registry{
		buffer:      opts.Buffer,
		sendTimeout: opts.SendTimeout,
		logger:      logger.With(logpkg.Component("registry")),
		metrics:     opts.Metrics,
		subs:        make(map[string]*Subscription),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go r.dispatch()
	return r
}

// Register creates a slot that receives every event broadcast from now on.
func (r *Registry) Register() (*Subscription, error) {
	sub := &Subscription{
		ID:    uuid.NewString(),
		queue: make(chan eventlog.Event, r.buffer),
		done:  make(chan struct{}),
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	sub.from = r.sent
	r.subs[sub.ID] = sub
	r.mu.Unlock()
	r.metrics.SubscriberAdded()
	r.logger.Debug("subscriber registered", logpkg.Str("subscriber", sub.ID))
	return sub, nil
}

// Deregister removes the slot. It is idempotent and safe to call while a
// delivery to the same slot is in flight; that delivery is abandoned.
func (r *Registry) Deregister(id string) {
	if sub := r.remove(id); sub != nil {
		sub.end(nil)
		r.logger.Debug("subscriber deregistered", logpkg.Str("subscriber", id))
	}
}

func (r *Registry) remove(id string) *Subscription {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()
	if ok {
		r.metrics.SubscriberRemoved()
	}
	return sub
}

// Broadcast queues ev for delivery and returns immediately.
func (r *Registry) Broadcast(ev eventlog.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.sent++
	r.pending = append(r.pending, broadcast{n: r.sent, ev: ev})
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Close stops delivery and ends every remaining subscription with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	subs := make([]*Subscription, 0, len(r.subs))
	for id, s := range r.subs {
		subs = append(subs, s)
		delete(r.subs, id)
	}
	r.pending = nil
	r.mu.Unlock()

	close(r.stop)
	<-r.stopped
	for _, s := range subs {
		s.end(ErrClosed)
		r.metrics.SubscriberRemoved()
	}
}

func (r *Registry) dispatch() {
	defer close(r.stopped)
	for {
		select {
		case <-r.stop:
			return
		case <-r.wake:
		}
		for {
			r.mu.Lock()
			batch := r.pending
			r.pending = nil
			r.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, b := range batch {
				select {
				case <-r.stop:
					return
				default:
				}
				r.deliver(b)
			}
		}
	}
}

// recipients lists the subscribers that were registered before broadcast n.
func (r *Registry) recipients(n uint64) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Subscription, 0, len(r.subs))
	for _, s := range r.subs {
		if s.from < n {
			out = append(out, s)
		}
	}
	return out
}

// deliver hands b to its recipients. Full queues get a bounded, concurrent
// second chance; those still full are dropped.
func (r *Registry) deliver(b broadcast) {
	ev := b.ev
	var blocked []*Subscription
	for _, s := range r.recipients(b.n) {
		select {
		case s.queue <- ev:
		case <-s.done:
		default:
			blocked = append(blocked, s)
		}
	}
	if len(blocked) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		slow []*Subscription
	)
	for _, s := range blocked {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			select {
			case s.queue <- ev:
			case <-s.done:
			case <-r.stop:
			case <-ctx.Done():
				mu.Lock()
				slow = append(slow, s)
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	for _, s := range slow {
		if r.remove(s.ID) == nil {
			continue
		}
		if s.end(ErrSlowSubscriber) {
			r.metrics.IncrementSubscriberDrops()
			r.logger.Warn("dropping slow subscriber",
				logpkg.Str("subscriber", s.ID),
				logpkg.Uint64("seq", ev.Seq),
				logpkg.Int("buffer", r.buffer))
		}
	}
}
