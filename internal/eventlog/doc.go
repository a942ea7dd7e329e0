// Package eventlog is the durable, append-only record of file mutations.
//
// The Pebble-backed Log keeps one key per event under a named log:
//   - log/{name}/m            last seq | last timestamp
//   - log/{name}/e/{seq_be8}  entries
//
// Records are stored as varint headerLen | header | payload | crc32c, with
// the header carrying the append timestamp so QueryFrom can binary-search by
// time without decoding payloads.
//
//	l, _ := eventlog.OpenLog(db, eventlog.DefaultName)
//	ev, _ := l.Append(ctx, eventlog.Event{Path: "/notes.txt", Kind: eventlog.KindWrite, Size: 5})
//	backlog, _ := l.QueryFrom(ctx, since, 0)
//	woke := l.WaitForAppend(ctx, 200*time.Millisecond)
//
// pglog provides the same Store contract over Postgres.
package eventlog
