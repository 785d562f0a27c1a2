package watch

import (
	"sync"
	"time"
)

// debouncer batches rapid path notifications and ensures callback
// invocations never overlap, so a burst of fsnotify events collapses into
// one rebuild pass. It batches plain paths rather than fsnotify.Event
// values, since Watcher classifies each path itself instead of inspecting
// the event's Op bits.
type debouncer struct {
	duration time.Duration
	callback func([]string)

	mu       sync.Mutex
	timer    *time.Timer
	paths    []string
	stopped  bool
	inFlight bool
	pending  []string
}

func newDebouncer(d time.Duration, cb func([]string)) *debouncer {
	return &debouncer{duration: d, callback: cb}
}

// add appends path to the pending batch and (re)schedules a flush.
func (d *debouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.paths = append(d.paths, path)

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush is called by the timer. A callback already in flight defers the new
// batch instead of overlapping with it.
func (d *debouncer) flush() {
	d.mu.Lock()

	if d.stopped {
		d.mu.Unlock()
		return
	}

	paths := d.paths
	d.paths = nil

	if len(paths) == 0 {
		d.mu.Unlock()
		return
	}

	if d.inFlight {
		d.pending = append(d.pending, paths...)
		d.mu.Unlock()
		return
	}

	d.inFlight = true
	d.mu.Unlock()

	d.callback(paths)

	d.mu.Lock()
	d.inFlight = false
	if len(d.pending) > 0 && !d.stopped {
		d.paths = d.pending
		d.pending = nil
		d.timer = time.AfterFunc(d.duration, d.flush)
	}
	d.mu.Unlock()
}

// stop cancels any pending flush and discards queued paths.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.paths = nil
	d.pending = nil
}
