package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemdrive/gemdrive/internal/auth"
	cfgpkg "github.com/gemdrive/gemdrive/internal/config"
	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/runtime"
	grpcserver "github.com/gemdrive/gemdrive/internal/server/grpc"
	httpserver "github.com/gemdrive/gemdrive/internal/server/http"
	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
)

const testSecret = "client-test-secret"

type testServer struct {
	rt    *runtime.Runtime
	url   string
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Auth.Secret = testSecret
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfg})
	require.NoError(t, err)
	hs := httptest.NewServer(httpserver.New(rt, nil).Handler())
	t.Cleanup(func() {
		rt.Registry().Close()
		hs.Close()
		_ = rt.Close()
	})
	tok, err := auth.NewJWT(testSecret, "", "").Mint("u1", time.Hour)
	require.NoError(t, err)
	return &testServer{rt: rt, url: hs.URL, token: tok}
}

func (s *testServer) write(t *testing.T, path, body string) eventlog.Event {
	t.Helper()
	ev, err := s.rt.Pipeline().Write(context.Background(), path, "u1", strings.NewReader(body))
	require.NoError(t, err)
	return ev
}

// run executes the root command with args and returns stdout.
func (s *testServer) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	root := NewRoot(func() string { return s.url })
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

func decodeLines(t *testing.T, out string) []eventlog.Event {
	t.Helper()
	var evs []eventlog.Event
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var ev eventlog.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		evs = append(evs, ev)
	}
	return evs
}

func TestTailHTTPReplaysThenStops(t *testing.T) {
	s := newTestServer(t)
	a := s.write(t, "/a.txt", "one")
	b := s.write(t, "/b.txt", "two")

	out, err := s.run(t, "tail", "--since", "0", "--limit", "2", "--token", s.token)
	require.NoError(t, err)
	evs := decodeLines(t, out)
	require.Len(t, evs, 2)
	assert.Equal(t, a.Seq, evs[0].Seq)
	assert.Equal(t, b.Seq, evs[1].Seq)
}

func TestTailHTTPRejectsMissingToken(t *testing.T) {
	s := newTestServer(t)
	_, err := s.run(t, "tail", "--token", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

func TestTailGRPC(t *testing.T) {
	s := newTestServer(t)
	ev := s.write(t, "/g.txt", "grpc")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	gs := grpcserver.New(s.rt, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = gs.Serve(ctx, l)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	t.Setenv("GEMDRIVE_GRPC", l.Addr().String())

	out, err := s.run(t, "tail", "--transport", "grpc", "--since", "0", "--limit", "1", "--token", s.token)
	require.NoError(t, err)
	evs := decodeLines(t, out)
	require.Len(t, evs, 1)
	assert.Equal(t, ev.Seq, evs[0].Seq)
	assert.Equal(t, "/g.txt", evs[0].Path)
}

func TestTailRejectsBadFlags(t *testing.T) {
	s := newTestServer(t)
	_, err := s.run(t, "tail", "--since", "last tuesday")
	assert.Error(t, err)
	_, err = s.run(t, "tail", "--transport", "carrier-pigeon")
	assert.Error(t, err)
}

func TestEventsPrintsBacklog(t *testing.T) {
	s := newTestServer(t)
	s.write(t, "/x.txt", "x")
	s.write(t, "/y.txt", "y")
	s.write(t, "/z.txt", "z")

	out, err := s.run(t, "events", "--since", "0", "--limit", "2", "--token", s.token)
	require.NoError(t, err)
	evs := decodeLines(t, out)
	require.Len(t, evs, 2)
	assert.Equal(t, "/x.txt", evs[0].Path)
	assert.Equal(t, "/y.txt", evs[1].Path)

	out, err = s.run(t, "events", "--since", "0", "--filter", `path == "/z.txt"`, "--token", s.token)
	require.NoError(t, err)
	evs = decodeLines(t, out)
	require.Len(t, evs, 1)
	assert.Equal(t, "/z.txt", evs[0].Path)

	_, err = s.run(t, "events", "--token", s.token)
	assert.Error(t, err, "--since is required")
}

func TestTokenCommand(t *testing.T) {
	s := newTestServer(t)
	out, err := s.run(t, "token", "--secret", testSecret, "--subject", "alice", "--ttl", "1m")
	require.NoError(t, err)
	p, err := auth.NewJWT(testSecret, "", "").Authenticate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)

	_, err = s.run(t, "token", "--secret", "", "--subject", "alice")
	assert.Error(t, err)
	_, err = s.run(t, "token", "--secret", testSecret)
	assert.Error(t, err)
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseSince("1726833600000")
	require.NoError(t, err)
	assert.Equal(t, int64(1726833600000), got.UnixMilli())

	got, err = parseSince("2024-09-20T12:00:00.5Z")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, time.Duration(got.Nanosecond()))

	_, err = parseSince("soon")
	assert.Error(t, err)
}
