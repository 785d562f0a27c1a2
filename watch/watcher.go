// Package watch implements the native filesystem watcher that drives
// digo's rebuild loop under buildmode.Watch. It owns one fsnotify.Watcher,
// debounces the raw event stream, classifies each settled path as
// changed/deleted/unknown, propagates invalidation along the dependency
// edges a build records through Dep (Ref edges only widen the watch set),
// and re-seeds the bound pipeline
// chains whose root matcher covers a marked path.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/skyweaver213/digo/asyncqueue"
	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/kit/colorlog"
	"github.com/skyweaver213/digo/matcher"
	"github.com/skyweaver213/digo/pipeline"
	"github.com/skyweaver213/digo/vfs"
)

// defaultIgnorePatterns covers editor swapfiles and OS bookkeeping files a
// watch session should never react to, independent of any caller-supplied
// ignore pattern. They are matched by basename so they apply wherever the
// watched tree lives, not just under the process cwd.
var defaultIgnorePatterns = []string{
	"*.swp", "*.swx", "*~", ".DS_Store", "Thumbs.db", "*.tmp",
}

func isDefaultIgnored(path string) bool {
	name := dpath.Base(path)
	for _, pat := range defaultIgnorePatterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// Options configures a Watcher.
type Options struct {
	FS  *vfs.FS
	Log *slog.Logger
	// Ignore is tested against every candidate path in addition to
	// defaultIgnorePatterns.
	Ignore matcher.Pattern
	// DebounceDelay batches rapid-fire events into one rebuild pass.
	// Defaults to 100ms.
	DebounceDelay time.Duration
}

// binding is one pipeline chain a Watcher re-drives on a matching change.
type binding struct {
	root     *pipeline.FileList
	matcher  *matcher.Matcher
	encoding string
}

// Watcher is digo's native filesystem watcher. The zero value is not
// usable; build one with New.
type Watcher struct {
	pipeline.NoopObserver

	fs            *vfs.FS
	log           *slog.Logger
	native        *fsnotify.Watcher
	ignore        *matcher.Matcher
	debounceDelay time.Duration

	mu          sync.Mutex
	watchedDirs map[string]bool
	dirEntries  map[string][]string
	fileMTimes  map[string]time.Time
	deps        map[string][]string
	roots       []*binding
}

// New builds a Watcher with a live native fsnotify handle. Call Close when
// finished with it.
func New(opts Options) (*Watcher, error) {
	o := opts
	if o.FS == nil {
		o.FS = vfs.New(nil)
	}
	if o.Log == nil {
		o.Log = colorlog.New("watch")
	}
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = 100 * time.Millisecond
	}

	native, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	ignore := matcher.New([]matcher.Pattern{matcher.Predicate(isDefaultIgnored), o.Ignore}, nil)

	return &Watcher{
		fs:            o.FS,
		log:           o.Log,
		native:        native,
		ignore:        ignore,
		debounceDelay: o.DebounceDelay,
		watchedDirs:   make(map[string]bool),
		dirEntries:    make(map[string][]string),
		fileMTimes:    make(map[string]time.Time),
		deps:          make(map[string][]string),
	}, nil
}

// Close stops the native filesystem watcher. Typically wired into a
// grace.OrchestrateOptions.ShutdownCallback.
func (w *Watcher) Close() error {
	return w.native.Close()
}

// Bind registers root for rebuild dispatch and walks each of its matcher's
// pattern bases to seed the native watch set, the live-state counterpart
// of source.Root.Discover's one-shot walk.
func (w *Watcher) Bind(root *pipeline.FileList, encoding string) error {
	m := root.Matcher()
	if m == nil {
		return fmt.Errorf("watch: Bind requires a root FileList")
	}

	w.mu.Lock()
	w.roots = append(w.roots, &binding{root: root, matcher: m, encoding: encoding})
	w.mu.Unlock()

	var firstErr error
	for _, base := range m.Bases() {
		if err := w.addTree(base); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Deps returns a snapshot of the dependency map FileSave has accumulated,
// chiefly for tests.
func (w *Watcher) Deps() map[string][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string][]string, len(w.deps))
	for k, v := range w.deps {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// FileSave overrides pipeline.NoopObserver's no-op. A saved file's deps
// enter the dependency map, so a change to one rebuilds the file; its refs
// only extend the native watch set alongside the deps and never force a
// rebuild.
func (w *Watcher) FileSave(f *dfile.File) {
	consumer := f.SrcPath()
	deps := f.Deps()
	edges := append(append([]string(nil), deps...), f.Refs()...)
	if len(edges) == 0 {
		return
	}

	if len(deps) > 0 {
		w.mu.Lock()
		w.deps[consumer] = append([]string(nil), deps...)
		w.mu.Unlock()
	}

	for _, dep := range edges {
		w.watchPath(dep)
	}
}

// Run drives the watch loop until ctx is canceled or the native watcher's
// channels close. Settled batches are handed to queue rather than run
// inline, so a rebuild queues behind any build currently draining instead
// of racing it.
func (w *Watcher) Run(ctx context.Context, queue *asyncqueue.Queue) error {
	db := newDebouncer(w.debounceDelay, func(paths []string) {
		queue.Enqueue(func(done asyncqueue.Done) {
			w.rebuild(dedupe(paths))
			done()
		})
	})
	defer db.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.native.Events:
			if !ok {
				return nil
			}
			if w.ignore.Test(ev.Name) {
				continue
			}
			db.add(ev.Name)
		case err, ok := <-w.native.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watch: fsnotify error", "err", err)
		}
	}
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// addTree walks root, registering a native watch on every non-ignored
// directory and seeding the mtime cache for every non-ignored file.
func (w *Watcher) addTree(root string) error {
	var walkErr error
	w.fs.Walk(root, vfs.WalkCallbacks{
		Dir: func(path string) bool {
			if w.ignore.Test(path) {
				return false
			}
			if err := w.watchDir(path); err != nil {
				walkErr = err
			}
			return true
		},
		File: func(path string, st vfs.Stat) {
			if w.ignore.Test(path) {
				return
			}
			w.mu.Lock()
			w.fileMTimes[path] = st.ModTime
			w.mu.Unlock()
		},
		Error: func(path string, err error) {
			w.log.Warn("watch: walk error", "path", path, "err", err)
		},
	})
	return walkErr
}

// watchDir registers dir with the native watcher and caches its entry list,
// a no-op if dir is already tracked.
func (w *Watcher) watchDir(dir string) error {
	w.mu.Lock()
	if w.watchedDirs[dir] {
		w.mu.Unlock()
		return nil
	}
	w.watchedDirs[dir] = true
	w.mu.Unlock()

	entries, err := w.fs.ReadDir(dir, 1)
	if err != nil {
		return err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}

	w.mu.Lock()
	w.dirEntries[dir] = names
	w.mu.Unlock()

	if err := w.native.Add(dir); err != nil {
		return fmt.Errorf("watch: add %s: %w", dir, err)
	}
	return nil
}

// watchPath extends the watch set to cover a dependency edge recorded
// outside the bound roots' own trees (e.g. a CSS @import into a shared
// directory).
func (w *Watcher) watchPath(path string) {
	if w.ignore.Test(path) {
		return
	}
	if err := w.watchDir(dpath.Dir(path)); err != nil {
		w.log.Warn("watch: failed to watch dependency directory", "path", path, "err", err)
		return
	}
	if st, ok, err := w.fs.StatIfExists(path, 1); err == nil && ok && !st.IsDir {
		w.mu.Lock()
		w.fileMTimes[path] = st.ModTime
		w.mu.Unlock()
	}
}

// rebuild classifies every settled path, propagates invalidation to
// reverse dependents, and re-drives each bound chain a marked path falls
// under.
func (w *Watcher) rebuild(paths []string) {
	changed := make(map[string]bool)
	deleted := make(map[string]bool)

	for _, p := range paths {
		w.classify(p, changed, deleted)
	}

	w.propagateDeps(changed, deleted)

	if len(changed) == 0 && len(deleted) == 0 {
		return
	}

	w.mu.Lock()
	roots := append([]*binding(nil), w.roots...)
	w.mu.Unlock()

	for _, b := range roots {
		w.rebuildRoot(b, changed, deleted)
	}
}

// classify determines whether path now represents a change, a deletion, or
// neither, updating the cached mtime/entry state as it goes.
func (w *Watcher) classify(path string, changed, deleted map[string]bool) {
	if w.ignore.Test(path) {
		return
	}

	st, exists, err := w.fs.StatIfExists(path, 1)
	if err != nil {
		w.log.Warn("watch: stat error", "path", path, "err", err)
		return
	}

	if !exists {
		w.markDeletedTree(path, deleted)
		return
	}

	if st.IsDir {
		w.diffDir(path, changed, deleted)
		return
	}

	w.mu.Lock()
	prev, known := w.fileMTimes[path]
	w.fileMTimes[path] = st.ModTime
	w.mu.Unlock()

	if !known || !prev.Equal(st.ModTime) {
		changed[path] = true
	}

	// Editors that write via temp-file-plus-rename land a fresh path whose
	// parent was never watched; pick it up now rather than waiting for a
	// directory event.
	if err := w.watchDir(dpath.Dir(path)); err != nil {
		w.log.Warn("watch: failed to watch parent directory", "path", path, "err", err)
	}
}

// diffDir compares a directory's current entries against the cached list,
// marking new files changed, new directories watched and recursed into,
// and vanished entries deleted (recursively, for a vanished subdirectory).
func (w *Watcher) diffDir(dir string, changed, deleted map[string]bool) {
	entries, err := w.fs.ReadDir(dir, 1)
	if err != nil {
		w.log.Warn("watch: readdir error", "path", dir, "err", err)
		return
	}

	names := make([]string, len(entries))
	currentSet := make(map[string]bool, len(entries))
	for i, e := range entries {
		names[i] = e.Name
		currentSet[e.Name] = true
	}

	w.mu.Lock()
	previous := w.dirEntries[dir]
	w.dirEntries[dir] = names
	w.mu.Unlock()

	prevSet := make(map[string]bool, len(previous))
	for _, name := range previous {
		prevSet[name] = true
	}

	for _, e := range entries {
		if prevSet[e.Name] {
			continue
		}
		path := dpath.Join(dir, e.Name)
		if w.ignore.Test(path) {
			continue
		}
		if e.IsDir {
			if err := w.watchDir(path); err != nil {
				w.log.Warn("watch: failed to watch new directory", "path", path, "err", err)
				continue
			}
			w.diffDir(path, changed, deleted)
			continue
		}
		if st, err := w.fs.Stat(path, 1); err == nil {
			w.mu.Lock()
			w.fileMTimes[path] = st.ModTime
			w.mu.Unlock()
		}
		changed[path] = true
	}

	for name := range prevSet {
		if !currentSet[name] {
			w.markDeletedTree(dpath.Join(dir, name), deleted)
		}
	}
}

// markDeletedTree marks path deleted, and recursively marks every cached
// descendant deleted if path was itself a tracked directory, clearing the
// watch-state caches as it goes.
func (w *Watcher) markDeletedTree(path string, deleted map[string]bool) {
	w.mu.Lock()
	entries, wasDir := w.dirEntries[path]
	entries = append([]string(nil), entries...)
	delete(w.dirEntries, path)
	delete(w.watchedDirs, path)
	delete(w.fileMTimes, path)
	w.mu.Unlock()

	_ = w.native.Remove(path)

	if !wasDir {
		deleted[path] = true
		return
	}

	for _, name := range entries {
		w.markDeletedTree(dpath.Join(path, name), deleted)
	}
}

// propagateDeps marks a consumer changed whenever any of its recorded
// deps is itself changed or deleted, iterating to a fixed point so a
// chain of dependencies (A depends on B depends on C) fully propagates.
func (w *Watcher) propagateDeps(changed, deleted map[string]bool) {
	w.mu.Lock()
	deps := make(map[string][]string, len(w.deps))
	for k, v := range w.deps {
		deps[k] = v
	}
	w.mu.Unlock()

	marked := func(p string) bool { return changed[p] || deleted[p] }

	for pass := 0; pass <= len(deps); pass++ {
		progressed := false
		for consumer, edges := range deps {
			if marked(consumer) {
				continue
			}
			for _, dep := range edges {
				if marked(dep) {
					changed[consumer] = true
					progressed = true
					break
				}
			}
		}
		if !progressed {
			break
		}
	}
}

// rebuildRoot re-seeds a bound chain with every marked path its matcher
// covers, walking the full chain to Reopen/ResetBuffer each node first.
// When any stage of the chain collects, every known file the matcher
// covers is re-seeded as well, so the collected output is rebuilt from the
// whole root rather than from the changed files alone.
func (w *Watcher) rebuildRoot(b *binding, changed, deleted map[string]bool) {
	var toAdd, toDelete []string
	for path := range changed {
		if b.matcher.Test(path) {
			toAdd = append(toAdd, path)
		}
	}
	for path := range deleted {
		if b.matcher.Test(path) {
			toDelete = append(toDelete, path)
		}
	}
	if len(toAdd) == 0 && len(toDelete) == 0 {
		return
	}

	for l := b.root; l != nil; l = l.Next() {
		if l.IsCollecting() {
			w.mu.Lock()
			for path := range w.fileMTimes {
				if !changed[path] && !deleted[path] && b.matcher.Test(path) {
					toAdd = append(toAdd, path)
				}
			}
			w.mu.Unlock()
			break
		}
	}

	reopenChain(b.root)

	cfg := b.root.Config()
	fallbackBase := b.matcher.Base()

	for _, path := range toAdd {
		f := dfile.New(dfile.Options{
			InitialPath: path,
			Base:        baseFor(b.matcher, path, fallbackBase),
			Encoding:    b.encoding,
			VFS:         w.fs,
			Observer:    cfg.Observer,
			Log:         w.log,
		})
		b.root.Add(f)
	}
	for _, path := range toDelete {
		f := dfile.New(dfile.Options{
			InitialPath: path,
			Base:        baseFor(b.matcher, path, fallbackBase),
			Encoding:    b.encoding,
			VFS:         w.fs,
			Observer:    cfg.Observer,
			Log:         w.log,
		})
		f.MarkDeleted()
		b.root.Add(f)
	}

	b.root.End()
}

// reopenChain walks every node from root to the chain's end, resetting
// each one's pending/ended state (and buffer, if it collects) so a new
// round of Add/End calls propagates correctly.
func reopenChain(root *pipeline.FileList) {
	for l := root; l != nil; l = l.Next() {
		l.Reopen()
		if l.IsCollecting() {
			l.ResetBuffer()
		}
	}
}

// baseFor picks the longest matcher base containing path, falling back to
// the matcher's common base when none of its individual pattern bases do
// (which cannot normally happen, since the common base is their ancestor).
func baseFor(m *matcher.Matcher, path, fallback string) string {
	best := fallback
	for _, base := range m.Bases() {
		if len(base) > len(best) && dpath.InDir(base, path) {
			best = base
		}
	}
	return best
}

var _ pipeline.Observer = (*Watcher)(nil)
