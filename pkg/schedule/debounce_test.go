package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimer records scheduled callbacks so tests control when they fire.
type manualTimer struct {
	mu    sync.Mutex
	fns   []func()
	calls int
}

func (m *manualTimer) after(_ time.Duration, fn func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.fns = append(m.fns, fn)
	// A stopped real timer keeps Debouncer's Stop calls harmless.
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (m *manualTimer) fireLast() {
	m.mu.Lock()
	fn := m.fns[len(m.fns)-1]
	m.mu.Unlock()
	fn()
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	var runs int
	mt := &manualTimer{}
	d := NewDebouncerWithTimer(300*time.Millisecond, func() { runs++ }, mt.after)

	d.Trigger()
	d.Trigger()
	d.Trigger()

	require.True(t, d.Pending())
	mt.fireLast()

	assert.Equal(t, 1, runs)
	assert.False(t, d.Pending())

	// A fired callback from a superseded timer must not run again.
	mt.mu.Lock()
	stale := mt.fns[0]
	mt.mu.Unlock()
	stale()
	assert.Equal(t, 1, runs)
}

func TestDebouncerFlushRunsPendingOnce(t *testing.T) {
	var runs int
	mt := &manualTimer{}
	d := NewDebouncerWithTimer(time.Second, func() { runs++ }, mt.after)

	d.Flush()
	assert.Equal(t, 0, runs, "flush without trigger is a no-op")

	d.Trigger()
	d.Flush()
	assert.Equal(t, 1, runs)

	mt.fireLast()
	assert.Equal(t, 1, runs, "timer firing after flush must not re-run")
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	var runs int
	mt := &manualTimer{}
	d := NewDebouncerWithTimer(time.Second, func() { runs++ }, mt.after)

	d.Trigger()
	d.Stop()
	mt.fireLast()
	assert.Equal(t, 0, runs)

	d.Trigger()
	assert.False(t, d.Pending(), "stopped debouncer rejects triggers")
}

func TestDebouncerRealTimer(t *testing.T) {
	done := make(chan struct{})
	d := NewDebouncer(10*time.Millisecond, func() { close(done) })
	d.Trigger()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced callback never fired")
	}
}
