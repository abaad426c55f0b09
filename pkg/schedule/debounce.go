package schedule

import (
	"sync"
	"time"
)

// TimerFunc schedules fn to run after d and returns the timer handle.
// time.AfterFunc satisfies it; tests substitute a manual trigger.
type TimerFunc func(d time.Duration, fn func()) *time.Timer

// Debouncer coalesces bursts of triggers into a single callback invocation
// once the quiet interval elapses. Each Trigger cancels any pending run and
// reschedules, so N triggers inside the window produce exactly one callback
// reflecting the state at fire time.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	fn       func()
	after    TimerFunc
	timer    *time.Timer
	pending  bool
	stopped  bool
}

// NewDebouncer builds a debouncer firing fn after interval of quiet.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return newDebouncer(interval, fn, time.AfterFunc)
}

// NewDebouncerWithTimer builds a debouncer with a custom timer hook.
func NewDebouncerWithTimer(interval time.Duration, fn func(), after TimerFunc) *Debouncer {
	return newDebouncer(interval, fn, after)
}

func newDebouncer(interval time.Duration, fn func(), after TimerFunc) *Debouncer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	if fn == nil {
		fn = func() {}
	}
	if after == nil {
		after = time.AfterFunc
	}
	return &Debouncer{interval: interval, fn: fn, after: after}
}

// Trigger schedules the callback, cancelling any pending run.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = true
	d.timer = d.after(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Flush runs a pending callback immediately, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether a callback is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending callback and rejects further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
