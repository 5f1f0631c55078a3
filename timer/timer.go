// Package timer provides the single-shot timer primitive spec.md's
// timer subsystem describes: schedule a callback on a monotonic clock
// with millisecond resolution, cancellable before it fires. It has no
// opinion on what uses it; the engine wires it for Timer H (which also
// bounds the wait for an ACK) and the registry for post-TERMINATED
// cleanup.
package timer

import (
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
)

// Default delays used by the registry. Named after their RFC 3261
// counterparts even though the non-reliable-transport retransmission
// variants (Timer G, I, J proper) stay out of scope per spec.md's
// non-goals; these three are the ones needed purely to bound resource
// lifetime, per SPEC_FULL.md §4.5.
const (
	TimerH       = 32 * time.Second
	AckPairing   = 32 * time.Second
	CleanupGrace = 5 * time.Second
)

// Timer is a single-shot, cancellable callback. Each one carries a
// UUID purely so log lines ("timer fired", "timer stopped") can be
// correlated without reaching back into the entity that owns it.
type Timer struct {
	ID string

	mu     sync.Mutex
	t      *time.Timer
	fired  bool
	stopped bool
}

// Schedule starts a timer that calls f after d, unless Stop is called
// first. f runs on its own goroutine, as with time.AfterFunc.
func Schedule(d time.Duration, f func()) *Timer {
	tm := &Timer{ID: uuid.Must(uuid.NewV4()).String()}
	tm.t = time.AfterFunc(d, func() {
		tm.mu.Lock()
		if tm.stopped {
			tm.mu.Unlock()
			return
		}
		tm.fired = true
		tm.mu.Unlock()
		f()
	})
	return tm
}

// Stop cancels the timer. It returns false if the timer already fired
// or was already stopped.
func (tm *Timer) Stop() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.fired || tm.stopped {
		return false
	}
	tm.stopped = true
	return tm.t.Stop()
}

// Fired reports whether the callback has already run.
func (tm *Timer) Fired() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.fired
}
