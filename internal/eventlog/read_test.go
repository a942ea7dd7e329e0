package eventlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLog appends n write events one second apart starting at base.
func seedLog(t *testing.T, n int, base time.Time) (*Log, []Event) {
	t.Helper()
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = base.Add(time.Duration(i) * time.Second)
	}
	l := newTestLog(t, WithClock(stepClock(ts...)))
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		ev, err := l.Append(context.Background(), writeEvent("/f"+string(rune('a'+i)), int64(i), "u1"))
		require.NoError(t, err)
		out[i] = ev
	}
	return l, out
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestReadForward(t *testing.T) {
	l, evs := seedLog(t, 5, base)
	items, next, err := l.Read(ReadOptions{Limit: 3})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, evs[0].Seq, items[0].Seq)
	assert.Equal(t, evs[2].Seq, items[2].Seq)
	assert.Equal(t, evs[3].Seq, next.Seq())
}

func TestReadReverse(t *testing.T) {
	l, evs := seedLog(t, 4, base)
	items, _, err := l.Read(ReadOptions{Reverse: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, evs[3].Seq, items[0].Seq)
	assert.Equal(t, evs[2].Seq, items[1].Seq)

	items, _, err = l.Read(ReadOptions{Reverse: true, Start: TokenFromSeq(evs[1].Seq)})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, evs[1].Seq, items[0].Seq)
}

func TestSeekByToken(t *testing.T) {
	l, evs := seedLog(t, 4, base)
	items, _, err := l.Read(ReadOptions{Start: TokenFromSeq(evs[2].Seq), Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, evs[2].Seq, items[0].Seq)
}

func TestQueryFromReturnsSuffixInOrder(t *testing.T) {
	l, evs := seedLog(t, 6, base)
	ctx := context.Background()

	all, err := l.QueryFrom(ctx, base.Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, evs, all)

	fromThird, err := l.QueryFrom(ctx, evs[2].Timestamp, 0)
	require.NoError(t, err)
	assert.Equal(t, evs[2:], fromThird, "since is inclusive")

	between, err := l.QueryFrom(ctx, evs[2].Timestamp.Add(time.Millisecond), 0)
	require.NoError(t, err)
	assert.Equal(t, evs[3:], between)

	none, err := l.QueryFrom(ctx, evs[5].Timestamp.Add(time.Nanosecond), 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := l.QueryFrom(ctx, time.Time{}, 2)
	require.NoError(t, err)
	assert.Equal(t, evs[:2], limited)
}

func TestQueryFromWithTiesIncludesAllEqual(t *testing.T) {
	l := newTestLog(t, WithClock(stepClock(base, base, base, base.Add(time.Second))))
	ctx := context.Background()
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		_, err := l.Append(ctx, writeEvent(p, 1, ""))
		require.NoError(t, err)
	}
	got, err := l.QueryFrom(ctx, base, 0)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "/a", got[0].Path)
}

func TestQueryFromIsRepeatable(t *testing.T) {
	l, evs := seedLog(t, 5, base)
	ctx := context.Background()
	a, err := l.QueryFrom(ctx, evs[1].Timestamp, 0)
	require.NoError(t, err)
	b, err := l.QueryFrom(ctx, evs[1].Timestamp, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestQueryFromEmptyLog(t *testing.T) {
	l := newTestLog(t)
	got, err := l.QueryFrom(context.Background(), time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryFromHonorsCancel(t *testing.T) {
	l, _ := seedLog(t, 3, base)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.QueryFrom(ctx, time.Time{}, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueryAfterResumesBySeq(t *testing.T) {
	l, evs := seedLog(t, 5, base)
	ctx := context.Background()

	head, err := l.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, evs[4].Seq, head)

	got, err := l.QueryAfter(ctx, evs[1].Seq, 2)
	require.NoError(t, err)
	assert.Equal(t, evs[2:4], got)

	rest, err := l.QueryAfter(ctx, got[1].Seq, 0)
	require.NoError(t, err)
	assert.Equal(t, evs[4:], rest)

	none, err := l.QueryAfter(ctx, head, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
