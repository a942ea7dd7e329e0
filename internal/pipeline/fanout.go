package pipeline

import (
	"errors"
	"io"
)

const fanoutChunk = 32 << 10

// errBranchClosed is what a consumer leaves behind when it stops reading.
var errBranchClosed = errors.New("fanout: branch closed by consumer")

// fanout copies one source into n pipes so every consumer observes the same
// byte sequence. Writes are synchronous, so the slowest live consumer paces
// the source and nothing is buffered beyond one chunk. A consumer that stops
// early is detached and the rest keep receiving data. A source error is
// delivered to every branch.
type fanout struct {
	src     io.Reader
	writers []*io.PipeWriter
}

func newFanout(src io.Reader, n int) (*fanout, []*io.PipeReader) {
	f := &fanout{src: src, writers: make([]*io.PipeWriter, n)}
	readers := make([]*io.PipeReader, n)
	for i := 0; i < n; i++ {
		readers[i], f.writers[i] = io.Pipe()
	}
	return f, readers
}

// run pumps until EOF, a source error, or every branch detaching. It returns
// the source error, if any.
func (f *fanout) run() error {
	buf := make([]byte, fanoutChunk)
	for {
		n, rerr := f.src.Read(buf)
		if n > 0 {
			live := 0
			for i, w := range f.writers {
				if w == nil {
					continue
				}
				if _, err := w.Write(buf[:n]); err != nil {
					f.writers[i] = nil
					continue
				}
				live++
			}
			if live == 0 {
				return nil
			}
		}
		if rerr == io.EOF {
			f.closeAll(nil)
			return nil
		}
		if rerr != nil {
			f.closeAll(rerr)
			return rerr
		}
	}
}

func (f *fanout) closeAll(err error) {
	for _, w := range f.writers {
		if w != nil {
			_ = w.CloseWithError(err)
		}
	}
}
