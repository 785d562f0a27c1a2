// Package memsink implements the in-memory write target File.Save
// redirects to under buildmode.Server. An HTTP dev-server handler can poll
// or subscribe to a Sink to serve build output without touching disk; the
// handler itself lives outside this module.
package memsink

import (
	"github.com/skyweaver213/digo/kit/typed"
)

// Change announces that a path's stored content was written or removed.
type Change struct {
	Path    string
	Deleted bool
}

// Sink stores destPath -> content in memory and fans out a Change per
// write/delete to any number of subscribers, non-blocking: a slow or
// absent subscriber never stalls a save.
type Sink struct {
	store *typed.SyncMap__[string, []byte]

	subscribe   chan chan Change
	unsubscribe chan chan Change
	broadcast   chan Change
	done        chan struct{}
}

// New starts a Sink's broadcast loop and returns it. Close stops the loop.
func New() *Sink {
	s := &Sink{
		store:       typed.NewSyncMap[string, []byte](),
		subscribe:   make(chan chan Change),
		unsubscribe: make(chan chan Change),
		broadcast:   make(chan Change),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sink) run() {
	subscribers := make(map[chan Change]bool)
	for {
		select {
		case <-s.done:
			for ch := range subscribers {
				close(ch)
			}
			return
		case ch := <-s.subscribe:
			subscribers[ch] = true
		case ch := <-s.unsubscribe:
			if subscribers[ch] {
				delete(subscribers, ch)
				close(ch)
			}
		case change := <-s.broadcast:
			for ch := range subscribers {
				select {
				case ch <- change:
				default:
					// drop: a subscriber that isn't ready to receive
					// misses this notification rather than blocking the
					// save that produced it.
				}
			}
		}
	}
}

// Write implements dfile.Sink: it stores content under destPath and
// notifies subscribers. A copy of content is stored so a caller reusing
// its buffer can't retroactively mutate the sink.
func (s *Sink) Write(destPath string, content []byte) {
	cp := append([]byte(nil), content...)
	s.store.Store(destPath, cp)
	s.publish(Change{Path: destPath})
}

// Delete removes destPath from the sink, notifying subscribers with
// Deleted set, mirroring the clean-mode branch of File.Save for disk
// output.
func (s *Sink) Delete(destPath string) {
	s.store.Delete(destPath)
	s.publish(Change{Path: destPath, Deleted: true})
}

func (s *Sink) publish(c Change) {
	select {
	case s.broadcast <- c:
	case <-s.done:
	}
}

// Get returns the currently stored content for path, if any.
func (s *Sink) Get(path string) ([]byte, bool) {
	return s.store.Load(path)
}

// Subscribe returns a channel of future Change events. Call the returned
// cancel func to stop receiving and release resources.
func (s *Sink) Subscribe() (ch <-chan Change, cancel func()) {
	c := make(chan Change, 16)
	select {
	case s.subscribe <- c:
	case <-s.done:
		close(c)
		return c, func() {}
	}
	return c, func() {
		select {
		case s.unsubscribe <- c:
		case <-s.done:
		}
	}
}

// Close stops the broadcast loop and disconnects every subscriber.
func (s *Sink) Close() {
	close(s.done)
}
