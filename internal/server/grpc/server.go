package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gemdrive/gemdrive/internal/runtime"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *healthReporter
	lis    net.Listener
	logger logpkg.Logger
}

// New constructs a gRPC server and registers services.
func New(rt *runtime.Runtime, logger logpkg.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	logger = logger.With(logpkg.Component("grpc"))
	opts = append(opts, grpc.ChainStreamInterceptor(streamAuth(rt.Auth())))
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), logger: logger}

	hs := health.NewServer()
	s.health = &healthReporter{rt: rt, hs: hs, logger: logger}
	healthpb.RegisterHealthServer(s.grpc, hs)
	s.grpc.RegisterService(&feedServiceDesc, &feedSvc{svc: rt.Feed()})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.health.refresh(ctx)
	hctx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go s.health.run(hctx)

	s.logger.Info("grpc server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.health.hs.Shutdown()
		// Subscribe streams only return once their subscriptions end.
		s.rt.Registry().Close()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.Stop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
