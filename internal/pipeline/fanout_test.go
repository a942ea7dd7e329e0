package pipeline

import (
	"bytes"
	"crypto/rand"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutBranchesSeeIdenticalBytes(t *testing.T) {
	payload := make([]byte, 3*fanoutChunk+17)
	_, _ = rand.Read(payload)

	f, branches := newFanout(bytes.NewReader(payload), 2)
	var wg sync.WaitGroup
	got := make([][]byte, 2)
	for i := range branches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 0 {
				// slow consumer
				r := oneByteReader{branches[i]}
				buf := make([]byte, 1)
				var out bytes.Buffer
				for {
					n, err := r.Read(buf)
					out.Write(buf[:n])
					if err != nil {
						break
					}
					if out.Len()%fanoutChunk == 0 {
						time.Sleep(time.Millisecond)
					}
				}
				got[i] = out.Bytes()
				return
			}
			got[i], _ = io.ReadAll(branches[i])
		}(i)
	}
	require.NoError(t, f.run())
	wg.Wait()
	assert.Equal(t, payload, got[0])
	assert.Equal(t, payload, got[1])
}

func TestFanoutSourceErrorReachesAllBranches(t *testing.T) {
	boom := errors.New("client went away")
	f, branches := newFanout(io.MultiReader(bytes.NewReader([]byte("partial")), errReader{boom}), 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range branches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = io.ReadAll(branches[i])
		}(i)
	}
	require.ErrorIs(t, f.run(), boom)
	wg.Wait()
	assert.ErrorIs(t, errs[0], boom)
	assert.ErrorIs(t, errs[1], boom)
}

func TestFanoutDetachedBranchDoesNotStallOthers(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4*fanoutChunk)
	f, branches := newFanout(bytes.NewReader(payload), 2)
	branches[0].CloseWithError(errBranchClosed)

	done := make(chan []byte)
	go func() {
		b, _ := io.ReadAll(branches[1])
		done <- b
	}()
	require.NoError(t, f.run())
	select {
	case b := <-done:
		assert.Len(t, b, len(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("remaining branch stalled")
	}
}
