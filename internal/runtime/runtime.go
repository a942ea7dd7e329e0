package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gemdrive/gemdrive/internal/auth"
	cfgpkg "github.com/gemdrive/gemdrive/internal/config"
	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/eventlog/pglog"
	"github.com/gemdrive/gemdrive/internal/metrics"
	"github.com/gemdrive/gemdrive/internal/pipeline"
	"github.com/gemdrive/gemdrive/internal/registry"
	feedsvc "github.com/gemdrive/gemdrive/internal/services/feed"
	"github.com/gemdrive/gemdrive/internal/storage/fs"
	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// AnonymousPrincipal owns mutations when no auth secret is configured.
const AnonymousPrincipal = "local"

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// Runtime owns every long-lived component of a node.
type Runtime struct {
	config  cfgpkg.Config
	logger  logpkg.Logger
	metrics *metrics.Metrics

	db       *pebblestore.DB
	pg       *pglog.Store
	log      eventlog.Store
	files    *fs.Local
	registry *registry.Registry
	pipeline *pipeline.Pipeline
	feed     *feedsvc.Service
	auth     auth.Authenticator
}

// Open initializes storage and the services on top of it.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	rt := &Runtime{config: cfg, logger: logger, metrics: opts.Metrics}

	if err := rt.openLog(ctx, opts); err != nil {
		return nil, err
	}

	files, err := fs.NewLocal(cfg.ResolveFilesDir(opts.DataDir))
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("files: %w", err)
	}
	rt.files = files

	rt.registry = registry.New(registry.Options{
		Buffer:      cfg.Subscribers.Buffer,
		SendTimeout: cfg.SendTimeout(),
		Logger:      logger,
		Metrics:     opts.Metrics,
	})

	sampleMax := cfg.SampleMaxBytes
	if sampleMax == 0 {
		sampleMax = -1
	}
	rt.pipeline, err = pipeline.New(pipeline.Options{
		Backend:     files,
		Log:         rt.log,
		Broadcaster: rt.registry,
		Logger:      logger,
		Metrics:     opts.Metrics,
		SampleMax:   sampleMax,
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.feed, err = feedsvc.New(feedsvc.Options{
		Log:           rt.log,
		Registry:      rt.registry,
		Logger:        logger,
		Metrics:       opts.Metrics,
		FlushInterval: cfg.FlushInterval(),
	})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	if cfg.Auth.Secret != "" {
		rt.auth = auth.NewJWT(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)
	} else {
		logger.Warn("no auth secret configured; every request acts as the anonymous principal",
			logpkg.Str("principal", AnonymousPrincipal))
		rt.auth = auth.Anonymous{ID: AnonymousPrincipal}
	}
	return rt, nil
}

func (r *Runtime) openLog(ctx context.Context, opts Options) error {
	switch r.config.LogBackend {
	case cfgpkg.LogBackendPostgres:
		pg, err := pglog.Open(ctx, r.config.PostgresDSN)
		if err != nil {
			return err
		}
		r.pg, r.log = pg, pg
		r.logger.Info("mutation log opened", logpkg.Str("backend", cfgpkg.LogBackendPostgres))
	default:
		var hook pebblestore.MetricsHook
		if opts.Metrics != nil {
			hook = metrics.StoreHook{M: opts.Metrics}
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       cfgpkg.StoreDir(opts.DataDir),
			Fsync:         opts.Fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       hook,
			Logger:        r.logger,
		})
		if err != nil {
			return err
		}
		l, err := eventlog.OpenLog(db, eventlog.DefaultName)
		if err != nil {
			_ = db.Close()
			return err
		}
		r.db, r.log = db, l
		r.logger.Info("mutation log opened",
			logpkg.Str("backend", cfgpkg.LogBackendPebble),
			logpkg.Uint64("last_seq", l.LastSeq()))
	}
	return nil
}

// Close ends live subscriptions, then closes the log and its storage.
func (r *Runtime) Close() error {
	if r.registry != nil {
		r.registry.Close()
	}
	var errs []error
	if r.log != nil {
		errs = append(errs, r.log.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth verifies the log store and the files directory are reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	switch {
	case r.pg != nil:
		if err := r.pg.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	case r.db != nil:
		it, err := r.db.NewIter(nil)
		if err != nil {
			return err
		}
		if err := it.Close(); err != nil {
			return err
		}
	default:
		return errors.New("log not open")
	}
	if r.files == nil {
		return errors.New("files not open")
	}
	if _, err := os.Stat(r.files.Root()); err != nil {
		return fmt.Errorf("files: %w", err)
	}
	return nil
}

// Files returns the storage backend.
func (r *Runtime) Files() fs.Backend { return r.files }

// Log returns the mutation log.
func (r *Runtime) Log() eventlog.Store { return r.log }

// Registry returns the live subscriber registry.
func (r *Runtime) Registry() *registry.Registry { return r.registry }

// Pipeline returns the mutation pipeline.
func (r *Runtime) Pipeline() *pipeline.Pipeline { return r.pipeline }

// Feed returns the subscription service.
func (r *Runtime) Feed() *feedsvc.Service { return r.feed }

// Auth returns the request authenticator.
func (r *Runtime) Auth() auth.Authenticator { return r.auth }

// Metrics may be nil.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the root logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
