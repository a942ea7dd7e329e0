package feed

import "time"

// writer batches sink flushes. With a zero window every maybeFlush flushes;
// otherwise flushes happen every flushBatch frames or when the window timer
// fires.
type writer struct {
	sink    Sink
	window  time.Duration
	timer   *time.Timer
	pending int
}

func newWriter(sink Sink, window time.Duration) *writer {
	w := &writer{sink: sink, window: window}
	if window > 0 {
		w.timer = time.NewTimer(window)
	}
	return w
}

func (w *writer) send(f Frame) error {
	if err := w.sink.Send(f); err != nil {
		return err
	}
	w.pending++
	return nil
}

func (w *writer) maybeFlush() error {
	if w.window == 0 || w.pending >= flushBatch {
		return w.flush()
	}
	return nil
}

func (w *writer) flush() error {
	if w.timer != nil {
		if !w.timer.Stop() {
			select {
			case <-w.timer.C:
			default:
			}
		}
		w.timer.Reset(w.window)
	}
	if w.pending == 0 {
		return nil
	}
	w.pending = 0
	return w.sink.Flush()
}

// tick fires when the flush window elapses; never when the window is zero.
func (w *writer) tick() <-chan time.Time {
	if w.timer == nil {
		return nil
	}
	return w.timer.C
}

func (w *writer) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
