package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/gemdrive/gemdrive/internal/config"
	"github.com/gemdrive/gemdrive/internal/metrics"
	"github.com/gemdrive/gemdrive/internal/runtime"
	grpcserver "github.com/gemdrive/gemdrive/internal/server/grpc"
	httpserver "github.com/gemdrive/gemdrive/internal/server/http"
	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

type Options struct {
	DataDir string
	// GRPCAddr is optional; empty disables the gRPC transport.
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// NewLogger builds the process logger from cfg, falling back to info/text
// when the configured level is unknown.
func NewLogger(cfg cfgpkg.LogConfig) logpkg.Logger {
	l, err := logpkg.ApplyConfig(&logpkg.Config{Level: cfg.Level, Format: cfg.Format})
	if err != nil {
		l = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
		l.Warn("invalid log config, using defaults", logpkg.Err(err))
	}
	return l
}

// Run starts the HTTP and gRPC servers and blocks until ctx is cancelled
// or a signal arrives.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}

	logger := NewLogger(opts.Config.Log)
	// Pebble logs through the standard library logger.
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(sctx, runtime.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        logger,
		Metrics:       metrics.New(),
	})
	if err != nil {
		return fmt.Errorf("open runtime: %w", err)
	}
	defer rt.Close()

	cfg := opts.Config
	logger.Info("starting gemdrive",
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("data_dir", opts.DataDir),
		logpkg.Str("files_dir", cfg.ResolveFilesDir(opts.DataDir)),
		logpkg.Str("log_backend", cfg.LogBackend),
		logpkg.Str("fsync", opts.Fsync.String()),
		logpkg.Int("sub_buf", cfg.Subscribers.Buffer),
		logpkg.Int("sub_send_timeout_ms", cfg.Subscribers.SendTimeoutMs),
		logpkg.Int("sub_flush_ms", cfg.Subscribers.FlushMs),
	)

	g, gctx := errgroup.WithContext(sctx)
	hsrv := httpserver.New(rt, logger)
	g.Go(func() error {
		if err := hsrv.ListenAndServe(gctx, opts.HTTPAddr); err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	var gsrv *grpcserver.Server
	if opts.GRPCAddr != "" {
		gsrv = grpcserver.New(rt, logger)
		g.Go(func() error {
			if err := gsrv.ListenAndServe(gctx, opts.GRPCAddr); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	// Stop transports before the runtime closes the log.
	hsrv.Close()
	if gsrv != nil {
		gsrv.Close()
	}
	if err != nil {
		logger.Error("server stopped", logpkg.Err(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
