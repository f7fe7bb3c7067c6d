package edits

import (
	"sync"
	"time"
)

// flushDebouncer holds back a document flush until hunks stop arriving for
// a quiet period. Each Trigger resets the clock, so a rapid stream costs
// one disk write instead of one per hunk.
type flushDebouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newFlushDebouncer(delay time.Duration) *flushDebouncer {
	return &flushDebouncer{delay: delay}
}

// Trigger arms the debouncer with flush, replacing any flush still waiting
// out its quiet period.
func (d *flushDebouncer) Trigger(flush func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, flush)
}

// Cancel disarms the debouncer. A flush whose timer already fired may still
// run; callers flush idempotently, so that is harmless.
func (d *flushDebouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
