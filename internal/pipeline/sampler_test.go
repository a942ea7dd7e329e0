package pipeline

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	tests := []struct {
		name        string
		in          []byte
		limit       int
		wantLen     int64
		wantContent *string
	}{
		{name: "small text", in: bytes.Repeat([]byte("a"), 500), limit: 1024, wantLen: 500, wantContent: ptr(strings.Repeat("a", 500))},
		{name: "over cap", in: bytes.Repeat([]byte("b"), 2000), limit: 1024, wantLen: 2000},
		{name: "exactly cap", in: bytes.Repeat([]byte("c"), 1024), limit: 1024, wantLen: 1024, wantContent: ptr(strings.Repeat("c", 1024))},
		{name: "one past cap", in: bytes.Repeat([]byte("c"), 1025), limit: 1024, wantLen: 1025},
		{name: "empty", in: nil, limit: 1024, wantLen: 0, wantContent: ptr("")},
		{name: "binary", in: []byte{0x89, 'P', 'N', 'G', 0, 1}, limit: 1024, wantLen: 6},
		{name: "nul byte", in: []byte("ab\x00cd"), limit: 1024, wantLen: 5},
		{name: "utf8", in: []byte("héllo wörld"), limit: 1024, wantLen: int64(len("héllo wörld")), wantContent: ptr("héllo wörld")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// one byte per read exercises the accumulation path
			res, err := Sample(iotestOneByte(bytes.NewReader(tt.in)), tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, res.Length)
			assert.Equal(t, tt.wantContent, res.Content)
		})
	}
}

func TestSamplePropagatesStreamError(t *testing.T) {
	boom := errors.New("reset by peer")
	res, err := Sample(io.MultiReader(strings.NewReader("abc"), errReader{boom}), 1024)
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 3, res.Length)
	assert.Nil(t, res.Content)
}

func ptr(s string) *string { return &s }

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func iotestOneByte(r io.Reader) io.Reader { return oneByteReader{r} }
