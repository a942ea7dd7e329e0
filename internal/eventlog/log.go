package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pebblestore "github.com/gemdrive/gemdrive/internal/storage/pebble"
)

// DefaultName is the log that holds file mutations.
const DefaultName = "mutations"

// Log is the Pebble-backed Store. A single mutex serializes appends, which
// gives every event a distinct seq and a timestamp no earlier than its
// predecessor's.
type Log struct {
	db   *pebblestore.DB
	name string
	now  func() time.Time

	mu      sync.Mutex
	lastSeq uint64
	lastTs  int64
	notify  *Notifier
}

var _ Store = (*Log)(nil)

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source. Tests use it to force ties and
// backwards clock steps.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// OpenLog initializes a Log and loads the last seq and timestamp from metadata (if any).
func OpenLog(db *pebblestore.DB, name string, opts ...Option) (*Log, error) {
	if db == nil {
		return nil, errors.New("eventlog: nil db")
	}
	if name == "" {
		name = DefaultName
	}
	l := &Log{db: db, name: name, now: time.Now, notify: NewNotifier()}
	for _, o := range opts {
		o(l)
	}
	meta, err := db.Get(KeyLogMeta(name))
	switch {
	case err == nil:
		if len(meta) < 16 {
			return nil, fmt.Errorf("%w: short meta for log %q", ErrCorrupt, name)
		}
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
		l.lastTs = int64(binary.BigEndian.Uint64(meta[8:16]))
	case errors.Is(err, pebblestore.ErrNotFound):
	default:
		return nil, fmt.Errorf("eventlog: load meta: %w", err)
	}
	return l, nil
}

// Append durably stores ev and returns it with Seq and Timestamp assigned.
// A caller-supplied Timestamp is kept only when it does not precede the last
// stored one.
func (l *Log) Append(ctx context.Context, ev Event) (Event, error) {
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}
	nanos := ts.UnixNano()
	if nanos < l.lastTs {
		nanos = l.lastTs
	}
	seq := l.lastSeq + 1
	ev.Seq = seq
	ev.Timestamp = time.Unix(0, nanos).UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		return Event{}, err
	}

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyLogEntry(l.name, seq), EncodeRecord(encodeHeader(ev.Timestamp), payload), nil); err != nil {
		return Event{}, err
	}
	var meta [16]byte
	binary.BigEndian.PutUint64(meta[:8], seq)
	binary.BigEndian.PutUint64(meta[8:], uint64(nanos))
	if err := b.Set(KeyLogMeta(l.name), meta[:], nil); err != nil {
		return Event{}, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return Event{}, fmt.Errorf("eventlog: commit seq %d: %w", seq, err)
	}
	l.lastSeq = seq
	l.lastTs = nanos

	l.notify.Notify()
	return ev, nil
}

// LastSeq returns the seq of the newest committed event, 0 when empty.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Close is a no-op; the Pebble DB is owned by the runtime.
func (l *Log) Close() error { return nil }
