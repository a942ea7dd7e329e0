package eventlog

import (
	"context"
	"time"
)

// WaitForAppend blocks until either a new append occurs, timeout elapses or
// ctx is done. It returns true only if woken by an append. A non-positive
// timeout waits on ctx alone.
func (l *Log) WaitForAppend(ctx context.Context, timeout time.Duration) bool {
	l.mu.Lock()
	ch := l.notify.C()
	l.mu.Unlock()
	return waitOn(ctx, ch, timeout)
}

func waitOn(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-ch:
		return true
	case <-timer:
		return false
	case <-ctx.Done():
		return false
	}
}

// Notifier is the close-and-replace broadcast used by stores to wake
// WaitForAppend callers. The zero value is not usable; use NewNotifier.
type Notifier struct {
	ch chan struct{}
}

func NewNotifier() *Notifier { return &Notifier{ch: make(chan struct{})} }

// C returns the channel closed by the next Notify. Callers must hold the
// same lock that guards Notify.
func (n *Notifier) C() <-chan struct{} { return n.ch }

// Notify wakes all current waiters.
func (n *Notifier) Notify() {
	close(n.ch)
	n.ch = make(chan struct{})
}

// Wait is WaitForAppend over an already captured channel.
func Wait(ctx context.Context, ch <-chan struct{}, timeout time.Duration) bool {
	return waitOn(ctx, ch, timeout)
}
