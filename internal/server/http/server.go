package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gemdrive/gemdrive/internal/auth"
	"github.com/gemdrive/gemdrive/internal/runtime"
	"github.com/gemdrive/gemdrive/internal/server/http/controllers"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

// ShutdownTimeout bounds graceful shutdown of in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Server is the HTTP transport.
type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New builds the router for rt.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	logger = logger.With(logpkg.Component("http"))
	cfg := rt.Config()

	r := chi.NewRouter()
	r.Use(cors(cfg.CORSOrigin))
	r.Use(requestID)
	r.Use(recoverer(logger))
	r.Use(accessLog(logger))

	reg := controllers.NewControllerRegistry(rt, logger)
	reg.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(rt.Auth(), cfg.Auth.AllowQueryToken, logger))
		reg.RegisterRoutes(r)
	})

	s := &Server{rt: rt, logger: logger, srv: &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	// Long-lived feed responses only finish once their subscriptions end.
	s.srv.RegisterOnShutdown(rt.Registry().Close)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
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
	s.logger.Info("http server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(cctx); err != nil {
			s.logger.Warn("http shutdown incomplete", logpkg.Err(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr is the bound address once serving.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
