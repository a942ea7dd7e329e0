// Package pglog is the Postgres implementation of eventlog.Store, for
// deployments that keep the mutation log next to other relational data.
package pglog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gemdrive/gemdrive/internal/eventlog"
)

// appendLockKey serializes appenders across connections so that time order
// and id order agree.
const appendLockKey int64 = 0x67656d6472697665

const schema = `
CREATE TABLE IF NOT EXISTS mutation_events (
	id       BIGSERIAL PRIMARY KEY,
	time     TIMESTAMPTZ NOT NULL,
	path     TEXT NOT NULL,
	type     TEXT NOT NULL,
	size     BIGINT NOT NULL DEFAULT 0,
	mod_time TEXT NOT NULL DEFAULT '',
	owner    TEXT NOT NULL DEFAULT '',
	"offset" BIGINT NOT NULL DEFAULT 0,
	length   BIGINT NOT NULL DEFAULT 0,
	content  TEXT NULL
);
CREATE INDEX IF NOT EXISTS mutation_events_time_idx ON mutation_events (time, id);
`

const (
	insertEvent = `INSERT INTO mutation_events (time, path, type, size, mod_time, owner, "offset", length, content)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	lastTime   = `SELECT time FROM mutation_events ORDER BY id DESC LIMIT 1`
	headID     = `SELECT COALESCE(MAX(id), 0) FROM mutation_events`
	selectFrom = `SELECT id, time, path, type, size, mod_time, owner, "offset", length, content
FROM mutation_events WHERE time >= $1 ORDER BY time, id LIMIT $2`
	selectAfter = `SELECT id, time, path, type, size, mod_time, owner, "offset", length, content
FROM mutation_events WHERE id > $1 ORDER BY id LIMIT $2`
)

// Store implements eventlog.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
	own  bool

	mu     sync.Mutex
	notify *eventlog.Notifier
}

var _ eventlog.Store = (*Store)(nil)

// Open connects to dsn, verifies connectivity and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pglog: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pglog: ping: %w", err)
	}
	s := New(pool)
	s.own = true
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The caller keeps ownership of pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now, notify: eventlog.NewNotifier()}
}

// Migrate creates the events table and index if absent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("pglog: migrate: %w", err)
	}
	return nil
}

// Append inserts ev inside a transaction holding the append lock. Timestamps
// are truncated to microseconds, the precision of TIMESTAMPTZ.
func (s *Store) Append(ctx context.Context, ev eventlog.Event) (eventlog.Event, error) {
	if err := ev.Validate(); err != nil {
		return eventlog.Event{}, err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eventlog.Event{}, fmt.Errorf("pglog: begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return eventlog.Event{}, fmt.Errorf("pglog: append lock: %w", err)
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	ts = ts.UTC().Truncate(time.Microsecond)
	var last time.Time
	switch err := tx.QueryRow(ctx, lastTime).Scan(&last); {
	case err == nil:
		if ts.Before(last) {
			ts = last.UTC()
		}
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return eventlog.Event{}, fmt.Errorf("pglog: load last time: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, insertEvent,
		ts, ev.Path, string(ev.Kind), ev.Size, ev.ModTime, ev.Owner, ev.Offset, ev.Length, ev.Content,
	).Scan(&id)
	if err != nil {
		return eventlog.Event{}, fmt.Errorf("pglog: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return eventlog.Event{}, fmt.Errorf("pglog: commit append tx: %w", err)
	}

	ev.Seq = uint64(id)
	ev.Timestamp = ts
	s.mu.Lock()
	s.notify.Notify()
	s.mu.Unlock()
	return ev, nil
}

// QueryFrom reads events at or after since in one statement, so the result
// is a consistent snapshot.
func (s *Store) QueryFrom(ctx context.Context, since time.Time, limit int) ([]eventlog.Event, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	return s.query(ctx, selectFrom, since.UTC(), lim)
}

// QueryAfter reads events with id > afterSeq. Id order matches time order
// because appends hold the append lock.
func (s *Store) QueryAfter(ctx context.Context, afterSeq uint64, limit int) ([]eventlog.Event, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	return s.query(ctx, selectAfter, int64(afterSeq), lim)
}

// Head returns the highest committed id.
func (s *Store) Head(ctx context.Context) (uint64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, headID).Scan(&id); err != nil {
		return 0, fmt.Errorf("pglog: head: %w", err)
	}
	return uint64(id), nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]eventlog.Event, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("pglog: query: %w", err)
	}
	defer rows.Close()

	var out []eventlog.Event
	for rows.Next() {
		var (
			ev   eventlog.Event
			id   int64
			kind string
		)
		if err := rows.Scan(&id, &ev.Timestamp, &ev.Path, &kind, &ev.Size, &ev.ModTime, &ev.Owner, &ev.Offset, &ev.Length, &ev.Content); err != nil {
			return nil, fmt.Errorf("pglog: scan: %w", err)
		}
		ev.Seq = uint64(id)
		ev.Kind = eventlog.Kind(kind)
		ev.Timestamp = ev.Timestamp.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pglog: rows: %w", err)
	}
	return out, nil
}

// WaitForAppend wakes on appends made through this Store only.
func (s *Store) WaitForAppend(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.notify.C()
	s.mu.Unlock()
	return eventlog.Wait(ctx, ch, timeout)
}

// Ping checks connectivity; runtime health uses it.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool when Open created it.
func (s *Store) Close() error {
	if s.own {
		s.pool.Close()
	}
	return nil
}
