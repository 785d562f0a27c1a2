package pipeline

import (
	"log/slog"
	"sync"

	"github.com/skyweaver213/digo/asyncqueue"
	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/kit/colorlog"
	"github.com/skyweaver213/digo/kit/genericsutil"
	"github.com/skyweaver213/digo/matcher"
	"github.com/skyweaver213/digo/vfs"
)

// Config threads the ambient settings every list in a chain needs, instead
// of re-exporting mutable globals.
type Config struct {
	Mode     buildmode.Mode
	Queue    *asyncqueue.Queue
	Observer Observer
	VFS      *vfs.FS
	Log      *slog.Logger
	// Sink, when set (buildmode.Server), is the in-memory target a Dest
	// stage should pass through as DestOptions.Sink. Task bodies read it
	// back off the Config the runner handed them rather than threading it
	// through some other side channel.
	Sink dfile.Sink
}

func (c *Config) normalize() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	out.Queue = genericsutil.OrDefault(out.Queue, asyncqueue.New())
	out.Observer = genericsutil.OrDefault[Observer](out.Observer, NoopObserver{})
	out.VFS = genericsutil.OrDefault(out.VFS, vfs.New(nil))
	out.Log = genericsutil.OrDefault(out.Log, colorlog.New("pipeline"))
	return &out
}

// FileList is a node in a singly linked processor chain.
type FileList struct {
	mu sync.Mutex

	cfg *Config

	prev, next *FileList
	processor  *Processor
	opts       any

	pending    int // in-flight Add calls, plus 1 "not yet ended upstream" sentinel
	endedUp    bool
	started    bool
	beforeOnce sync.Once

	collecting  bool
	buffer      []*dfile.File
	bufferIndex map[string]int

	matcher            *matcher.Matcher // set only on a root list
	unlockOnFinish     bool             // root lists hold the queue locked until they finish
	cloneBeforeForward bool             // set by Clone(); hands downstream a fresh File
}

// NewRoot creates a root FileList seeded from a glob matcher (see the
// source package). It holds the config's queue locked until it finishes,
// so dependent stages wait for discovery to complete.
func NewRoot(m *matcher.Matcher, cfg *Config) *FileList {
	c := cfg.normalize()
	l := &FileList{cfg: c, matcher: m, pending: 1, unlockOnFinish: true}
	c.Queue.Lock()
	c.Observer.AddList(l)
	return l
}

// Matcher returns the root matcher, or nil for a non-root list.
func (l *FileList) Matcher() *matcher.Matcher { return l.matcher }

// IsRoot reports whether this list is a chain's root.
func (l *FileList) IsRoot() bool { return l.matcher != nil }

// Config returns the chain-wide configuration.
func (l *FileList) Config() *Config { return l.cfg }

// Next returns the next list in the chain, or nil at the chain's end.
// The watcher walks a chain with this to Reopen/ResetBuffer every node
// before a rebuild re-seeds the root.
func (l *FileList) Next() *FileList {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// IsCollecting reports whether this list's processor batches files before
// calling End.
func (l *FileList) IsCollecting() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collecting
}

// Pipe appends a new list bound to p to the result-end of the chain.
func (l *FileList) Pipe(p *Processor, opts any) *FileList {
	next := &FileList{cfg: l.cfg, processor: p, opts: opts, pending: 1}
	if p != nil && p.Collect {
		next.collecting = true
		next.bufferIndex = make(map[string]int)
	}
	l.next = next
	next.prev = l
	if p != nil && p.Init != nil {
		p.Init(opts, next)
	}
	l.cfg.Observer.AddList(next)
	return next
}

func (l *FileList) ensureStarted() {
	l.beforeOnce.Do(func() {
		if l.processor != nil && l.processor.Before != nil {
			l.processor.Before(l.opts, l)
		}
	})
}

// Add pushes one file into this list for processing.
func (l *FileList) Add(file *dfile.File) {
	if l.cloneBeforeForward {
		file = file.Clone()
	}

	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	l.ensureStarted()
	l.cfg.Observer.AddFile(l, file)

	if l.processor != nil && l.processor.Load {
		file.Load()
	}

	if l.processor == nil || l.processor.Add == nil {
		l.finishAdd(file, true)
		return
	}

	switch add := l.processor.Add.(type) {
	case SyncAdd:
		l.finishAdd(file, add(file))
	case AsyncAdd:
		add(file, func(keep bool) { l.finishAdd(file, keep) })
	default:
		l.finishAdd(file, true)
	}
}

func (l *FileList) finishAdd(file *dfile.File, keep bool) {
	if keep && l.next != nil {
		l.next.Add(file)
	}
	if l.processor != nil && l.processor.Collect {
		l.collectFile(file, keep)
	}

	l.mu.Lock()
	l.pending--
	pending := l.pending
	ended := l.endedUp
	l.mu.Unlock()

	if pending == 0 && ended {
		l.finish()
	}
}

// collectFile clones file into this list's ordered buffer, keyed by
// initialPath, replacing any prior clone with the same key; a suppressed
// (keep==false) file in clean mode removes the entry instead.
func (l *FileList) collectFile(file *dfile.File, keep bool) {
	key := file.SrcPath()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !keep && l.cfg.Mode == buildmode.Clean {
		if idx, ok := l.bufferIndex[key]; ok {
			l.buffer[idx] = nil
			delete(l.bufferIndex, key)
		}
		return
	}

	clone := file.Clone()
	if idx, ok := l.bufferIndex[key]; ok {
		l.buffer[idx] = clone
		return
	}
	l.bufferIndex[key] = len(l.buffer)
	l.buffer = append(l.buffer, clone)
}

func (l *FileList) bufferSnapshot() []*dfile.File {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*dfile.File, 0, len(l.buffer))
	for _, f := range l.buffer {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

// End signals that upstream has finished producing files for this list.
func (l *FileList) End() {
	l.mu.Lock()
	l.pending--
	l.endedUp = true
	pending := l.pending
	l.mu.Unlock()

	if pending == 0 {
		l.finish()
	}
}

func (l *FileList) finish() {
	if l.processor != nil && l.processor.After != nil {
		l.processor.After(l.opts, l)
	}

	if l.processor != nil && l.processor.End != nil {
		var files []*dfile.File
		if l.processor.Collect {
			files = l.bufferSnapshot()
		}
		done := make(chan struct{})
		var once sync.Once
		l.processor.End(files, l.opts, l, func() { once.Do(func() { close(done) }) })
		<-done
	}

	if l.unlockOnFinish {
		l.cfg.Queue.Unlock()
	}

	if l.next != nil {
		l.next.End()
	}
}

// Reopen resets a finished list so the watcher can re-seed files through
// it on rebuild. It does not touch the
// collected buffer: a collecting stage is re-run from scratch by its
// owner, not patched in place.
func (l *FileList) Reopen() {
	l.mu.Lock()
	l.pending = 1
	l.endedUp = false
	l.beforeOnce = sync.Once{}
	if l.unlockOnFinish {
		l.cfg.Queue.Lock()
	}
	l.mu.Unlock()
}

// ResetBuffer clears a collecting list's buffer, used when the owning root
// list is being fully re-run.
func (l *FileList) ResetBuffer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buffer = nil
	l.bufferIndex = make(map[string]int)
}
