package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/metrics"
	"github.com/gemdrive/gemdrive/internal/storage/fs"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// Broadcaster receives committed events. Broadcast must not block on slow
// subscribers.
type Broadcaster interface {
	Broadcast(ev eventlog.Event)
}

// Options configures a Pipeline.
type Options struct {
	Backend     fs.Backend
	Log         eventlog.Store
	Broadcaster Broadcaster
	Logger      logpkg.Logger
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	// SampleMax caps the inline content preview; 0 means DefaultSampleMax,
	// negative disables previews.
	SampleMax int
}

// Pipeline executes mutations. It is safe for concurrent use.
type Pipeline struct {
	backend   fs.Backend
	log       eventlog.Store
	bus       Broadcaster
	logger    logpkg.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	sampleMax int

	locks *pathLocks
	// commitMu makes append order and broadcast order the same.
	commitMu sync.Mutex
}

// New validates opts and builds a Pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Backend == nil || opts.Log == nil || opts.Broadcaster == nil {
		return nil, errors.New("pipeline: backend, log and broadcaster are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/gemdrive/gemdrive/internal/pipeline")
	}
	sampleMax := opts.SampleMax
	switch {
	case sampleMax == 0:
		sampleMax = DefaultSampleMax
	case sampleMax < 0:
		sampleMax = 0
	}
	return &Pipeline{
		backend:   opts.Backend,
		log:       opts.Log,
		bus:       opts.Broadcaster,
		logger:    logger.With(logpkg.Component("pipeline")),
		metrics:   opts.Metrics,
		tracer:    tracer,
		sampleMax: sampleMax,
		locks:     newPathLocks(),
	}, nil
}

// Write stores body at path on behalf of owner and returns the logged event.
// Once the path lock is held the mutation ignores ctx cancellation and runs
// to completion or failure.
func (p *Pipeline) Write(ctx context.Context, path, owner string, body io.Reader) (eventlog.Event, error) {
	start := time.Now()
	ev, err := p.write(ctx, path, owner, body)
	p.metrics.ObserveMutation(string(eventlog.KindWrite), resultOf(err), start)
	return ev, err
}

func (p *Pipeline) write(ctx context.Context, path, owner string, body io.Reader) (eventlog.Event, error) {
	clean, err := fs.CleanPath(path)
	if err != nil {
		return eventlog.Event{}, fail(StateIdle, ErrInvalidPath, path, err)
	}
	if body == nil {
		body = eofReader{}
	}
	unlock := p.locks.Lock(clean)
	defer unlock()

	ctx, span := p.tracer.Start(context.WithoutCancel(ctx), "pipeline.write",
		trace.WithAttributes(attribute.String("gemdrive.path", clean)))
	defer span.End()

	// Persisting
	sample, err := p.persist(ctx, clean, body)
	if err != nil {
		return eventlog.Event{}, p.abort(span, err)
	}

	// Stating
	info, err := p.backend.Stat(ctx, clean)
	if err != nil {
		return eventlog.Event{}, p.abort(span, fail(StateStating, ErrStat, clean, err))
	}
	if info.IsDir {
		return eventlog.Event{}, p.abort(span, fail(StateStating, ErrStat, clean, fs.ErrInvalidPath))
	}

	ev := eventlog.Event{
		Path:    clean,
		Kind:    eventlog.KindWrite,
		Size:    info.Size,
		ModTime: info.ModTime.UTC().Format(time.RFC3339Nano),
		Owner:   owner,
		Offset:  0,
		Length:  sample.Length,
		Content: sample.Content,
	}
	return p.commit(ctx, span, ev)
}

// persist runs the backend write and the sampler concurrently over a tee of
// body.
func (p *Pipeline) persist(ctx context.Context, clean string, body io.Reader) (SampleResult, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.persist")
	defer span.End()

	if err := p.backend.MkdirAll(ctx, fs.Parent(clean)); err != nil {
		return SampleResult{}, fail(StatePersisting, ErrPersistence, clean, err)
	}

	tee, branches := newFanout(body, 2)
	var (
		g      errgroup.Group
		sample SampleResult
	)
	g.Go(func() error {
		if err := tee.run(); err != nil {
			return fail(StatePersisting, ErrPersistence, clean, fmt.Errorf("read body: %w", err))
		}
		return nil
	})
	g.Go(func() error {
		defer branches[0].CloseWithError(errBranchClosed)
		if err := p.backend.Write(ctx, clean, branches[0]); err != nil {
			return fail(StatePersisting, ErrPersistence, clean, err)
		}
		return nil
	})
	g.Go(func() error {
		defer branches[1].CloseWithError(errBranchClosed)
		var err error
		if sample, err = Sample(branches[1], p.sampleMax); err != nil {
			return fail(StatePersisting, ErrPersistence, clean, fmt.Errorf("sample: %w", err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return SampleResult{}, err
	}
	span.SetAttributes(attribute.Int64("gemdrive.length", sample.Length))
	return sample, nil
}

// Delete removes path on behalf of owner and returns the logged event.
func (p *Pipeline) Delete(ctx context.Context, path, owner string) (eventlog.Event, error) {
	start := time.Now()
	ev, err := p.delete(ctx, path, owner)
	p.metrics.ObserveMutation(string(eventlog.KindDelete), resultOf(err), start)
	return ev, err
}

func (p *Pipeline) delete(ctx context.Context, path, owner string) (eventlog.Event, error) {
	clean, err := fs.CleanPath(path)
	if err != nil {
		return eventlog.Event{}, fail(StateIdle, ErrInvalidPath, path, err)
	}
	unlock := p.locks.Lock(clean)
	defer unlock()

	ctx, span := p.tracer.Start(context.WithoutCancel(ctx), "pipeline.delete",
		trace.WithAttributes(attribute.String("gemdrive.path", clean)))
	defer span.End()

	if err := p.backend.Delete(ctx, clean); err != nil {
		kind := ErrPersistence
		switch {
		case errors.Is(err, fs.ErrNotFound):
			kind = ErrNotFound
		case errors.Is(err, fs.ErrInvalidPath):
			kind = ErrInvalidPath
		}
		return eventlog.Event{}, p.abort(span, fail(StatePersisting, kind, clean, err))
	}
	return p.commit(ctx, span, eventlog.Event{Path: clean, Kind: eventlog.KindDelete, Owner: owner})
}

// commit appends ev and enqueues the stored copy for broadcast.
func (p *Pipeline) commit(ctx context.Context, span trace.Span, ev eventlog.Event) (eventlog.Event, error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	actx, aspan := p.tracer.Start(ctx, "pipeline.append")
	appendStart := time.Now()
	stored, err := p.log.Append(actx, ev)
	p.metrics.ObserveLogAppend(appendStart)
	aspan.End()
	if err != nil {
		p.logger.Error("mutation persisted but not logged",
			logpkg.Str("path", ev.Path),
			logpkg.Str("kind", string(ev.Kind)),
			logpkg.Err(err))
		return eventlog.Event{}, p.abort(span, fail(StateLoggingAppend, ErrLogAppend, ev.Path, err))
	}

	p.bus.Broadcast(stored)
	p.metrics.IncrementBroadcast()
	span.SetAttributes(attribute.Int64("gemdrive.seq", int64(stored.Seq)))
	p.logger.Debug("mutation committed",
		logpkg.Str("path", stored.Path),
		logpkg.Str("kind", string(stored.Kind)),
		logpkg.Uint64("seq", stored.Seq),
		logpkg.Int64("size", stored.Size))
	return stored, nil
}

func (p *Pipeline) abort(span trace.Span, err error) error {
	span.RecordError(err)
	var pe *Error
	if errors.As(err, &pe) {
		span.SetStatus(codes.Error, pe.Kind.Error())
		if pe.Kind != ErrLogAppend {
			p.logger.Debug("mutation aborted", logpkg.Str("state", string(pe.State)), logpkg.Str("path", pe.Path), logpkg.Err(pe.Err))
		}
	}
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrInvalidPath):
		return metrics.ResultBadRequest
	case errors.Is(err, ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrStat):
		return metrics.ResultStat
	case errors.Is(err, ErrLogAppend):
		return metrics.ResultLogAppend
	default:
		return metrics.ResultPersist
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
