// Package timer provides cancel-before-reschedule timer primitives on top of
// clockwork, so every scheduled callback in the runtime has exactly one owner.
package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Slot holds at most one pending one-shot callback. Scheduling replaces any
// pending callback; a callback that fires after being replaced or cancelled is
// suppressed.
type Slot struct {
	clock clockwork.Clock

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

func NewSlot(clock clockwork.Clock) *Slot {
	return &Slot{clock: clock}
}

// Schedule cancels any pending callback and arms fn to run after d.
// Negative delays are clamped to zero.
func (s *Slot) Schedule(d time.Duration, fn func()) {
	d = max(d, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending callback, if any. Safe to call repeatedly.
func (s *Slot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

// Pending reports whether a callback is armed.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Slot) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Interval runs a callback on a fixed period until stopped. Start on a running
// Interval is a no-op.
type Interval struct {
	clock clockwork.Clock

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func NewInterval(clock clockwork.Clock) *Interval {
	return &Interval{clock: clock}
}

// Start begins ticking every period. Returns false if already running.
func (iv *Interval) Start(period time.Duration, fn func()) bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.stop != nil {
		return false
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	iv.stop, iv.done = stop, done

	ticker := iv.clock.NewTicker(period)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				select {
				case <-stop:
					return
				default:
				}
				fn()
			}
		}
	}()
	return true
}

// Stop halts the interval. It does not wait for an in-progress callback, so
// callbacks may call Stop on their own Interval.
func (iv *Interval) Stop() {
	iv.mu.Lock()
	defer iv.mu.Unlock()

	if iv.stop == nil {
		return
	}
	close(iv.stop)
	iv.stop, iv.done = nil, nil
}

// Running reports whether the interval is ticking.
func (iv *Interval) Running() bool {
	iv.mu.Lock()
	defer iv.mu.Unlock()
	return iv.stop != nil
}
