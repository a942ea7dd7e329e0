package grpcserver

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/gemdrive/gemdrive/internal/auth"
	cfgpkg "github.com/gemdrive/gemdrive/internal/config"
	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/runtime"
	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
)

const (
	bufSize    = 1 << 20
	testSecret = "grpc-test-secret"
)

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
}

func newTestServer(t *testing.T) (*Server, *grpc.ClientConn) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Auth.Secret = testSecret
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfg})
	require.NoError(t, err)
	srv := New(rt, nil)
	srv.health.refresh(context.Background())
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer(srv.grpc)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		rt.Registry().Close()
		srv.Close()
		_ = rt.Close()
	})
	return srv, conn
}

func bearer(t *testing.T) grpc.CallOption {
	t.Helper()
	tok, err := auth.NewJWT(testSecret, "", "").Mint("u1", time.Hour)
	require.NoError(t, err)
	return grpc.PerRPCCredentials(BearerCredentials(tok))
}

func TestHealthOverGRPC(t *testing.T) {
	_, conn := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := healthpb.NewHealthClient(conn)
	res, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())

	res, err = c.Check(ctx, &healthpb.HealthCheckRequest{Service: feedServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
}

func TestSubscribeRequiresAuth(t *testing.T) {
	_, conn := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := NewFeedClient(conn).Subscribe(ctx, &SubscribeRequest{})
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestSubscribeReplayThenLive(t *testing.T) {
	srv, conn := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now().Add(-time.Second)
	first, err := srv.rt.Pipeline().Write(ctx, "/a.txt", "u1", strings.NewReader("hello"))
	require.NoError(t, err)

	stream, err := NewFeedClient(conn).Subscribe(ctx, &SubscribeRequest{Since: start.Format(time.RFC3339Nano)}, bearer(t))
	require.NoError(t, err)

	got, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, first.Seq, got.Seq)
	assert.Equal(t, "/a.txt", got.Path)
	assert.Equal(t, eventlog.KindWrite, got.Kind)
	require.NotNil(t, got.Content)
	assert.Equal(t, "hello", *got.Content)

	second, err := srv.rt.Pipeline().Delete(ctx, "/a.txt", "u1")
	require.NoError(t, err)
	got, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, second.Seq, got.Seq)
	assert.Equal(t, eventlog.KindDelete, got.Kind)

	srv.rt.Registry().Close()
	_, err = stream.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestSubscribeRejectsBadArguments(t *testing.T) {
	_, conn := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, req := range []*SubscribeRequest{{Since: "yesterday"}, {Filter: "path +"}} {
		stream, err := NewFeedClient(conn).Subscribe(ctx, req, bearer(t))
		require.NoError(t, err)
		_, err = stream.Recv()
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "%+v", req)
	}
}
