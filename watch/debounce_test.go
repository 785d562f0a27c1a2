package watch

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncerBatchesRapidAdds(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string

	d := newDebouncer(20*time.Millisecond, func(paths []string) {
		mu.Lock()
		batches = append(batches, paths)
		mu.Unlock()
	})
	defer d.stop()

	d.add("a")
	d.add("b")
	d.add("c")

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("batches = %v, want exactly 1 batch", batches)
	}
	if len(batches[0]) != 3 {
		t.Errorf("batch = %v, want 3 paths", batches[0])
	}
}

func TestDebouncerDoesNotOverlapCallbacks(t *testing.T) {
	var mu sync.Mutex
	running := 0
	maxConcurrent := 0

	d := newDebouncer(5*time.Millisecond, func(paths []string) {
		mu.Lock()
		running++
		if running > maxConcurrent {
			maxConcurrent = running
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
	})
	defer d.stop()

	d.add("x")
	time.Sleep(10 * time.Millisecond)
	d.add("y") // arrives while the first callback is still running

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > 1 {
		t.Errorf("maxConcurrent = %d, want at most 1 (no overlapping callbacks)", maxConcurrent)
	}
}

func TestDebouncerStopPreventsFurtherCallbacks(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	d := newDebouncer(10*time.Millisecond, func(paths []string) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	d.add("a")
	d.stop()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("calls = %d, want 0 after stop", calls)
	}
}
