package syncer

import (
	"sync"
	"time"
)

// debouncer collapses bursts of calls into one deferred invocation of
// action with the most recent call's argument. At most one timer is live at
// a time; each call rearms it, so the deadline always measures from the
// latest call.
type debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	action  func(T)
	timer   *time.Timer
	pending T
	stopped bool
}

func newDebouncer[T any](delay time.Duration, action func(T)) *debouncer[T] {
	return &debouncer[T]{delay: delay, action: action}
}

func (d *debouncer[T]) call(arg T) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = arg
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debouncer[T]) fire() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	arg := d.pending
	d.timer = nil
	var zero T
	d.pending = zero
	d.mu.Unlock()

	d.action(arg)
}

// stop drops any pending invocation. Stopped debouncers ignore further
// calls; there is no durability guarantee for work still in the window.
func (d *debouncer[T]) stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
