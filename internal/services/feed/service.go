package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/metrics"
	"github.com/gemdrive/gemdrive/internal/registry"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

const (
	// replayPage bounds how many backlog events are held in memory at once.
	replayPage = 512
	// flushBatch forces a flush after this many unflushed sends.
	flushBatch = 64
)

// Options wires a Service.
type Options struct {
	Log      eventlog.Store
	Registry *registry.Registry
	Logger   logpkg.Logger
	Metrics  *metrics.Metrics
	// FlushInterval coalesces sink flushes for up to this long. Zero flushes
	// after every frame.
	FlushInterval time.Duration
}

// Service replays the log and splices on the live feed.
type Service struct {
	log         eventlog.Store
	reg         *registry.Registry
	logger      logpkg.Logger
	metrics     *metrics.Metrics
	flushWindow time.Duration
}

// New returns a Service. Log and Registry are required.
func New(opts Options) (*Service, error) {
	if opts.Log == nil || opts.Registry == nil {
		return nil, errors.New("feed: log and registry are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Service{
		log:         opts.Log,
		reg:         opts.Registry,
		logger:      logger.With(logpkg.Component("feed")),
		metrics:     opts.Metrics,
		flushWindow: opts.FlushInterval,
	}, nil
}

// Subscribe streams frames to sink until its context ends, the subscriber
// is dropped, or the registry shuts down. The registry slot is released
// before Subscribe returns.
func (s *Service) Subscribe(opts SubscribeOptions, sink Sink) error {
	ctx := sink.Context()
	filter, err := newCELFilter(opts.Filter)
	if err != nil {
		return err
	}

	sub, err := s.reg.Register()
	if err != nil {
		return err
	}
	defer s.reg.Deregister(sub.ID)
	logger := s.logger.With(logpkg.Str("subscriber", sub.ID))
	logger.Debug("subscription opened", logpkg.Bool("replay", opts.Since != nil))

	w := newWriter(sink, s.flushWindow)
	defer w.stop()

	if opts.Hello {
		if err := w.send(Frame{Debug: "init"}); err != nil {
			return err
		}
		if err := w.flush(); err != nil {
			return err
		}
	}

	if opts.Since != nil {
		n, err := s.replay(ctx, *opts.Since, filter, w)
		s.metrics.AddReplayed(n)
		if err != nil {
			if errors.Is(err, ErrReplay) {
				logger.Error("backlog replay failed", logpkg.Err(err))
				_ = w.send(Frame{Error: ErrorReplayFailed})
				_ = w.flush()
			}
			return err
		}
		logger.Debug("backlog replayed", logpkg.Int("events", n))
	}
	if err := w.flush(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("subscription closed by client")
			return ctx.Err()
		case <-sub.Done():
			return s.ended(sub, filter, w)
		case <-w.tick():
			if err := w.flush(); err != nil {
				return err
			}
		case ev := <-sub.Events():
			if !filter.Eval(ev) {
				continue
			}
			if err := w.send(Frame{Event: &ev}); err != nil {
				return err
			}
			if len(sub.Events()) == 0 {
				if err := w.maybeFlush(); err != nil {
					return err
				}
			}
		}
	}
}

// ended drains what the registry delivered before ending the subscription,
// then writes the terminal frame.
func (s *Service) ended(sub *registry.Subscription, filter celFilter, w *writer) error {
	for {
		select {
		case ev := <-sub.Events():
			if !filter.Eval(ev) {
				continue
			}
			if err := w.send(Frame{Event: &ev}); err != nil {
				return err
			}
			continue
		default:
		}
		break
	}
	err := sub.Err()
	switch {
	case errors.Is(err, registry.ErrSlowSubscriber):
		_ = w.send(Frame{Error: ErrorTooSlow})
	case errors.Is(err, registry.ErrClosed):
		_ = w.send(Frame{Error: ErrorShutdown})
	}
	_ = w.flush()
	return err
}

// replay sends the logged events from since up to the log head as of the
// call. Events appended between Register and that head are also queued live,
// so they are the only ones a subscriber may see twice.
func (s *Service) replay(ctx context.Context, since time.Time, filter celFilter, w *writer) (int, error) {
	head, err := s.log.Head(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", ErrReplay, err)
	}
	sent := 0
	err = s.pages(ctx, since, head, func(ev eventlog.Event) (bool, error) {
		if !filter.Eval(ev) {
			return true, nil
		}
		if err := w.send(Frame{Event: &ev}); err != nil {
			return false, err
		}
		sent++
		return true, w.maybeFlush()
	})
	return sent, err
}

// pages walks the log from since through head in replayPage chunks, calling
// fn for each event until fn returns false or an error. The first chunk is
// found by time; later chunks resume after the last seq seen. Store errors are
// wrapped in ErrReplay.
func (s *Service) pages(ctx context.Context, since time.Time, head uint64, fn func(eventlog.Event) (bool, error)) error {
	if head == 0 {
		return nil
	}
	page, err := s.log.QueryFrom(ctx, since, replayPage)
	for {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %v", ErrReplay, err)
		}
		for _, ev := range page {
			if ev.Seq > head {
				return nil
			}
			more, err := fn(ev)
			if err != nil || !more {
				return err
			}
		}
		if len(page) < replayPage {
			return nil
		}
		last := page[len(page)-1].Seq
		if last >= head {
			return nil
		}
		page, err = s.log.QueryAfter(ctx, last, replayPage)
	}
}

// Backlog returns logged events matching opts, oldest first. With Wait set
// and nothing to return, it waits for the next append and tries once more.
func (s *Service) Backlog(ctx context.Context, opts BacklogOptions) ([]eventlog.Event, error) {
	filter, err := newCELFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	out, err := s.backlog(ctx, opts, filter)
	if err != nil || len(out) > 0 || opts.Wait <= 0 {
		return out, err
	}
	s.log.WaitForAppend(ctx, opts.Wait)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.backlog(ctx, opts, filter)
}

func (s *Service) backlog(ctx context.Context, opts BacklogOptions, filter celFilter) ([]eventlog.Event, error) {
	if !filter.enabled {
		evs, err := s.log.QueryFrom(ctx, opts.Since, opts.Limit)
		s.metrics.AddReplayed(len(evs))
		return evs, err
	}
	// A filter may reject most of a page, so page until the limit is met.
	head, err := s.log.Head(ctx)
	if err != nil {
		return nil, err
	}
	var out []eventlog.Event
	err = s.pages(ctx, opts.Since, head, func(ev eventlog.Event) (bool, error) {
		if !filter.Eval(ev) {
			return true, nil
		}
		out = append(out, ev)
		return opts.Limit <= 0 || len(out) < opts.Limit, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddReplayed(len(out))
	return out, nil
}
