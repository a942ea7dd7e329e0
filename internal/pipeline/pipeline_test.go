package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/gemdrive/gemdrive/internal/eventlog"
	"github.com/gemdrive/gemdrive/internal/metrics"
	"github.com/gemdrive/gemdrive/internal/storage/fs"
	"github.com/gemdrive/gemdrive/internal/storage/fs/mocks"
	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
)

type recordingBus struct {
	mu     sync.Mutex
	events []eventlog.Event
}

func (b *recordingBus) Broadcast(ev eventlog.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) all() []eventlog.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]eventlog.Event(nil), b.events...)
}

type fixture struct {
	p       *Pipeline
	backend *fs.Local
	log     *eventlog.Log
	bus     *recordingBus
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	l, err := eventlog.OpenLog(db, eventlog.DefaultName)
	require.NoError(t, err)
	backend, err := fs.NewLocal(t.TempDir())
	require.NoError(t, err)
	bus := &recordingBus{}
	m := metrics.New()
	p, err := New(Options{Backend: backend, Log: l, Broadcaster: bus, Metrics: m})
	require.NoError(t, err)
	return &fixture{p: p, backend: backend, log: l, bus: bus, metrics: m}
}

func TestWriteEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev, err := f.p.Write(ctx, "/notes.txt", "u1", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Equal(t, "/notes.txt", ev.Path)
	assert.Equal(t, eventlog.KindWrite, ev.Kind)
	assert.EqualValues(t, 5, ev.Size)
	assert.Equal(t, "u1", ev.Owner)
	assert.EqualValues(t, 0, ev.Offset)
	assert.EqualValues(t, 5, ev.Length)
	require.NotNil(t, ev.Content)
	assert.Equal(t, "hello", *ev.Content)
	assert.NotEmpty(t, ev.ModTime)
	_, err = time.Parse(time.RFC3339Nano, ev.ModTime)
	require.NoError(t, err)

	logged, err := f.log.QueryFrom(ctx, time.Time{}, 0)
	require.NoError(t, err)
	require.Equal(t, []eventlog.Event{ev}, logged)
	assert.Equal(t, []eventlog.Event{ev}, f.bus.all())

	rc, _, err := f.backend.Open(ctx, "/notes.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(data))
}

func TestWriteLargePayloadOmitsContent(t *testing.T) {
	f := newFixture(t)
	body := bytes.Repeat([]byte("z"), 2000)
	ev, err := f.p.Write(context.Background(), "/dir/sub/big.txt", "u1", bytes.NewReader(body))
	require.NoError(t, err)
	assert.EqualValues(t, 2000, ev.Length)
	assert.EqualValues(t, 2000, ev.Size)
	assert.Nil(t, ev.Content)
}

func TestWriteOverwritesAndNormalizesPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.p.Write(ctx, "a//b.txt", "u1", strings.NewReader("long first body"))
	require.NoError(t, err)
	ev, err := f.p.Write(ctx, "/a/b.txt", "u2", strings.NewReader("2nd"))
	require.NoError(t, err)
	assert.Equal(t, "/a/b.txt", ev.Path)
	assert.EqualValues(t, 3, ev.Size)
	assert.EqualValues(t, 2, ev.Seq)
}

func TestDeleteEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.p.Write(ctx, "/a/b.txt", "u1", strings.NewReader("bye"))
	require.NoError(t, err)

	ev, err := f.p.Delete(ctx, "/a/b.txt", "u1")
	require.NoError(t, err)
	assert.Equal(t, eventlog.KindDelete, ev.Kind)
	assert.EqualValues(t, 0, ev.Size)
	assert.Nil(t, ev.Content)
	assert.Empty(t, ev.ModTime)
	assert.Equal(t, "u1", ev.Owner)

	_, err = f.backend.Stat(ctx, "/a/b.txt")
	require.ErrorIs(t, err, fs.ErrNotFound)
	assert.Len(t, f.bus.all(), 2)
}

func TestDeleteMissingLogsNothing(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Delete(context.Background(), "/nope.txt", "u1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualValues(t, 0, f.log.LastSeq())
	assert.Empty(t, f.bus.all())
}

func TestInvalidPathRejected(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{"", "/", "/../etc/passwd"} {
		_, err := f.p.Write(context.Background(), p, "u1", strings.NewReader("x"))
		require.ErrorIs(t, err, ErrInvalidPath, p)
	}
	assert.EqualValues(t, 0, f.log.LastSeq())
}

func TestBodyErrorAbortsWithoutLogging(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection reset")
	body := io.MultiReader(strings.NewReader("partial"), errReader{boom})
	_, err := f.p.Write(context.Background(), "/x.txt", "u1", body)
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, boom)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StatePersisting, pe.State)
	assert.EqualValues(t, 0, f.log.LastSeq())
	_, err = f.backend.Stat(context.Background(), "/x.txt")
	require.ErrorIs(t, err, fs.ErrNotFound)
}

func TestWriteIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev, err := f.p.Write(ctx, "/c.txt", "u1", strings.NewReader("done anyway"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, ev.Seq)
}

func TestConcurrentWritesBroadcastInLogOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := "/p" + string(rune('a'+i%6)) + ".txt"
			if _, err := f.p.Write(ctx, path, "u1", strings.NewReader(strings.Repeat("x", i+1))); err != nil {
				t.Errorf("write: %v", err)
			}
		}(i)
	}
	wg.Wait()
	logged, err := f.log.QueryFrom(ctx, time.Time{}, 0)
	require.NoError(t, err)
	assert.Equal(t, logged, f.bus.all())
}

func TestPersistFailureNeverAppends(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	store := &countingStore{}
	bus := &recordingBus{}
	p, err := New(Options{Backend: backend, Log: store, Broadcaster: bus})
	require.NoError(t, err)

	diskFull := errors.New("no space left on device")
	backend.EXPECT().MkdirAll(gomock.Any(), "/a").Return(nil)
	// returns without consuming its branch; the sampler branch must still drain
	backend.EXPECT().Write(gomock.Any(), "/a/b.txt", gomock.Any()).Return(diskFull)

	_, err = p.Write(context.Background(), "/a/b.txt", "u1", bytes.NewReader(bytes.Repeat([]byte("q"), 5*fanoutChunk)))
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, diskFull)
	assert.Zero(t, store.appends)
	assert.Empty(t, bus.all())
}

func TestStatFailureNeverAppends(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	store := &countingStore{}
	bus := &recordingBus{}
	p, err := New(Options{Backend: backend, Log: store, Broadcaster: bus})
	require.NoError(t, err)

	backend.EXPECT().MkdirAll(gomock.Any(), "/").Return(nil)
	backend.EXPECT().Write(gomock.Any(), "/v.txt", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, r io.Reader) error {
			_, err := io.Copy(io.Discard, r)
			return err
		})
	backend.EXPECT().Stat(gomock.Any(), "/v.txt").Return(fs.FileInfo{}, fs.ErrNotFound)

	_, err = p.Write(context.Background(), "/v.txt", "u1", strings.NewReader("vanishing"))
	require.ErrorIs(t, err, ErrStat)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StateStating, pe.State)
	assert.Zero(t, store.appends)
	assert.Empty(t, bus.all())
}

func TestLogAppendFailureSurfacesAndSkipsBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	store := &countingStore{err: errors.New("store offline")}
	bus := &recordingBus{}
	p, err := New(Options{Backend: backend, Log: store, Broadcaster: bus})
	require.NoError(t, err)

	backend.EXPECT().Delete(gomock.Any(), "/d.txt").Return(nil)

	_, err = p.Delete(context.Background(), "/d.txt", "u1")
	require.ErrorIs(t, err, ErrLogAppend)
	assert.Equal(t, 1, store.appends)
	assert.Empty(t, bus.all())
}

// countingStore is an eventlog.Store that records appends and can fail them.
type countingStore struct {
	mu      sync.Mutex
	appends int
	err     error
}

func (s *countingStore) Append(_ context.Context, ev eventlog.Event) (eventlog.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.err != nil {
		return eventlog.Event{}, s.err
	}
	ev.Seq = uint64(s.appends)
	ev.Timestamp = time.Now().UTC()
	return ev, nil
}

func (s *countingStore) QueryFrom(context.Context, time.Time, int) ([]eventlog.Event, error) {
	return nil, nil
}

func (s *countingStore) QueryAfter(context.Context, uint64, int) ([]eventlog.Event, error) {
	return nil, nil
}

func (s *countingStore) Head(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.appends), nil
}

func (s *countingStore) WaitForAppend(context.Context, time.Duration) bool { return false }
func (s *countingStore) Close() error                                      { return nil }
