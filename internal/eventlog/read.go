package eventlog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Token encodes the starting position as seq (8 bytes big-endian).
type Token [8]byte

func TokenFromSeq(seq uint64) Token { var t Token; binary.BigEndian.PutUint64(t[:], seq); return t }
func (t Token) Seq() uint64         { return binary.BigEndian.Uint64(t[:]) }

type ReadOptions struct {
	Start   Token // if zero, begin from the first entry
	Limit   int
	Reverse bool
}

type Item struct {
	Seq     uint64
	Header  []byte
	Payload []byte
}

// iterSource is satisfied by both the DB and a snapshot of it.
type iterSource interface {
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// Read returns up to Limit raw items starting at Start (inclusive) along
// with the token of the next unread item. Reverse scans descending.
func (l *Log) Read(opts ReadOptions) ([]Item, Token, error) {
	return l.read(l.db, opts)
}

func (l *Log) read(src iterSource, opts ReadOptions) ([]Item, Token, error) {
	var next Token
	prefix := keyEntryPrefix(l.name)
	iter, err := src.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: KeyLogEntry(l.name, ^uint64(0)),
	})
	if err != nil {
		return nil, next, err
	}
	defer iter.Close()

	startSeq := opts.Start.Seq()
	var ok bool
	switch {
	case opts.Reverse && startSeq == 0:
		ok = iter.Last()
	case opts.Reverse:
		ok = iter.SeekLT(KeyLogEntry(l.name, startSeq+1))
	case startSeq == 0:
		ok = iter.First()
	default:
		ok = iter.SeekGE(KeyLogEntry(l.name, startSeq))
	}

	items := make([]Item, 0, max(1, opts.Limit))
	for ; ok && (opts.Limit <= 0 || len(items) < opts.Limit); ok = step(iter, opts.Reverse) {
		seq := seqFromKey(iter.Key())
		dec, err := DecodeRecord(iter.Value())
		if err != nil {
			return items, next, fmt.Errorf("seq %d: %w", seq, err)
		}
		items = append(items, Item{Seq: seq, Header: dec.Header, Payload: dec.Payload})
	}
	if ok && iter.Valid() {
		next = TokenFromSeq(seqFromKey(iter.Key()))
	}
	return items, next, iter.Error()
}

func step(iter *pebble.Iterator, reverse bool) bool {
	if reverse {
		return iter.Prev()
	}
	return iter.Next()
}

const queryCheckEvery = 256

// QueryFrom returns events with Timestamp >= since, oldest first. The result
// is bounded by the last seq committed when the call started and read from a
// single snapshot.
func (l *Log) QueryFrom(ctx context.Context, since time.Time, limit int) ([]Event, error) {
	upper := l.LastSeq()
	if upper == 0 {
		return nil, nil
	}
	snap := l.db.NewSnapshot()
	defer snap.Close()

	start := uint64(1)
	if !since.IsZero() {
		var err error
		if start, err = l.findStartSeq(snap, since.UnixNano(), upper); err != nil {
			return nil, err
		}
	}
	return l.scan(ctx, snap, start, upper, limit)
}

// QueryAfter returns events with Seq > afterSeq, oldest first, under the same
// bounds as QueryFrom. Callers paging through a backlog resume with the last
// seq they saw.
func (l *Log) QueryAfter(ctx context.Context, afterSeq uint64, limit int) ([]Event, error) {
	upper := l.LastSeq()
	if afterSeq >= upper {
		return nil, nil
	}
	snap := l.db.NewSnapshot()
	defer snap.Close()
	return l.scan(ctx, snap, afterSeq+1, upper, limit)
}

// Head returns LastSeq; it never fails.
func (l *Log) Head(context.Context) (uint64, error) { return l.LastSeq(), nil }

// scan decodes entries [start, upper] from snap, stopping at limit.
func (l *Log) scan(ctx context.Context, snap *pebble.Snapshot, start, upper uint64, limit int) ([]Event, error) {
	if start > upper {
		return nil, nil
	}
	iter, err := snap.NewIter(&pebble.IterOptions{
		LowerBound: KeyLogEntry(l.name, start),
		UpperBound: KeyLogEntry(l.name, upper+1),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Event
	for ok := iter.First(); ok; ok = iter.Next() {
		if len(out)%queryCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ev, err := decodeEvent(seqFromKey(iter.Key()), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// findStartSeq binary-searches seqs [1, upper] for the first entry whose
// header timestamp is >= atNanos. Returns upper+1 when none qualifies.
func (l *Log) findStartSeq(src iterSource, atNanos int64, upper uint64) (uint64, error) {
	lo, hi := uint64(1), upper+1
	for lo < hi {
		mid := lo + (hi-lo)/2
		items, _, err := l.read(src, ReadOptions{Start: TokenFromSeq(mid), Limit: 1})
		if err != nil {
			return 0, err
		}
		if len(items) == 0 || items[0].Seq > upper {
			hi = mid
			continue
		}
		ts, ok := headerNanos(items[0].Header)
		if !ok {
			return 0, fmt.Errorf("seq %d: %w", items[0].Seq, ErrCorrupt)
		}
		if ts < atNanos {
			lo = items[0].Seq + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

func decodeEvent(seq uint64, value []byte) (Event, error) {
	dec, err := DecodeRecord(value)
	if err != nil {
		return Event{}, fmt.Errorf("seq %d: %w", seq, err)
	}
	var ev Event
	if err := json.Unmarshal(dec.Payload, &ev); err != nil {
		return Event{}, fmt.Errorf("seq %d: %w", seq, err)
	}
	if ts, ok := headerNanos(dec.Header); ok {
		ev.Timestamp = time.Unix(0, ts).UTC()
	}
	ev.Seq = seq
	return ev, nil
}
