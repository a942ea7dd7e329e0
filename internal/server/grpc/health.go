package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/gemdrive/gemdrive/internal/runtime"
	logpkg "github.com/gemdrive/gemdrive/pkg/log"
)

const healthInterval = 5 * time.Second

// healthReporter mirrors runtime health into the standard health service,
// for the whole server ("") and for the Feed service.
type healthReporter struct {
	rt     *runtime.Runtime
	hs     *health.Server
	logger logpkg.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

func (h *healthReporter) refresh(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.rt.CheckHealth(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		if h.last != st {
			h.logger.Warn("health check failing", logpkg.Err(err))
		}
	}
	h.last = st
	h.hs.SetServingStatus("", st)
	h.hs.SetServingStatus(feedServiceName, st)
}

func (h *healthReporter) run(ctx context.Context) {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.refresh(ctx)
		}
	}
}
