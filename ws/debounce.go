package ws

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid local mutations into a single publish per
// window. Trigger replaces any pending publish, so when the window closes
// only the latest value goes out (intermediate values are never published).
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
	stopped bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Trigger schedules publish to run when the current window closes. If a
// publish is already pending, it is replaced and the window keeps running,
// so a steady stream of triggers still publishes once per window.
func (d *Debouncer) Trigger(publish func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = publish
	if d.timer != nil {
		return
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	publish := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()
	if publish != nil {
		publish()
	}
}

// Flush publishes any pending value immediately and stops the debouncer.
// Used on session teardown so the last change is not lost to the window.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	publish := d.pending
	d.pending = nil
	d.mu.Unlock()
	if publish != nil {
		publish()
	}
}
