// Package task implements the task runner: it binds a user task function
// to the async queue, selects the behavior for the active build mode (run
// once, stay resident watching, or serve from memory), and reports an
// aggregated summary once the pipeline drains. Watch mode shuts down
// gracefully through kit/grace.Orchestrate.
package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skyweaver213/digo/asyncqueue"
	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/kit/colorlog"
	"github.com/skyweaver213/digo/kit/grace"
	"github.com/skyweaver213/digo/matcher"
	"github.com/skyweaver213/digo/memsink"
	"github.com/skyweaver213/digo/pipeline"
	"github.com/skyweaver213/digo/source"
	"github.com/skyweaver213/digo/sourcemap"
	"github.com/skyweaver213/digo/vfs"
	"github.com/skyweaver213/digo/watch"
)

// Func is a build script's task body. It receives the runner's Config,
// already wired with the queue, observer, filesystem facade, and (in
// server mode) the in-memory sink the task's own Src/Pipe/Dest calls must
// thread through. It returns every root list it created via source.Src,
// so the runner can drive their deferred walks (source.Root.Discover)
// after the task body itself has finished composing the chain.
type Func func(cfg *pipeline.Config) []*source.Root

// Counters aggregates a run's totals: files seen, errors, warnings.
type Counters struct {
	Files    int
	Errors   int
	Warnings int
}

// Summary is the report task.Run emits once the queue drains. Sink is
// non-nil only after a buildmode.Server run, for the caller to wire into
// its own HTTP dev-server handler.
type Summary struct {
	Counters
	Elapsed time.Duration
	Status  string
	Sink    *memsink.Sink
}

// Options configures a Run call.
type Options struct {
	// Name is the task's display name, used only in the logged summary.
	Name string
	Mode buildmode.Mode

	VFS *vfs.FS
	Log *slog.Logger
	// Observer, if set, additionally receives every file/list event
	// alongside the runner's own counting and (in watch mode) the
	// watcher's dependency tracking.
	Observer pipeline.Observer

	// Encoding is passed through to watch.Watcher.Bind for each root so
	// a rebuilt file is recreated with the same encoding it was
	// originally discovered with.
	Encoding string
	// Ignore extends the watcher's default ignore list.
	Ignore matcher.Pattern
	// DebounceDelay overrides the watcher's default ~100ms debounce
	// window.
	DebounceDelay time.Duration
}

// Run selects one of three execution modes based on opts.Mode:
//   - Watch: install the watcher, invoke fn once, then stay resident
//     reacting to events until a shutdown signal arrives.
//   - Server: install an in-memory sink the task's Dest stages write
//     through, and invoke fn once; starting the HTTP server itself is
//     the caller's responsibility.
//   - otherwise (Build/Clean/Preview): enqueue fn on the async queue and
//     return once it drains.
func Run(fn Func, opts Options) (Summary, error) {
	switch opts.Mode {
	case buildmode.Watch:
		return runWatch(fn, opts)
	case buildmode.Server:
		return runServer(fn, opts)
	default:
		return runOnce(fn, opts)
	}
}

func resolveLog(opts Options) *slog.Logger {
	if opts.Log != nil {
		return opts.Log
	}
	return colorlog.New("task")
}

func resolveVFS(opts Options) *vfs.FS {
	if opts.VFS != nil {
		return opts.VFS
	}
	return vfs.New(nil)
}

func runOnce(fn Func, opts Options) (Summary, error) {
	start := time.Now()
	cnt := newCounting()
	log := resolveLog(opts)

	cfg := &pipeline.Config{
		Mode:     opts.Mode,
		Queue:    asyncqueue.New(),
		Observer: newFanout(cnt, opts.Observer),
		VFS:      resolveVFS(opts),
		Log:      log,
	}

	cfg.Queue.EnqueueSync(func() { discover(fn, cfg) })
	cfg.Queue.Wait()

	summary := finalize(cnt, time.Since(start), statusFor(opts.Mode, cnt.snapshot()))
	logSummary(log, opts.Name, summary)
	return summary, nil
}

func runServer(fn Func, opts Options) (Summary, error) {
	start := time.Now()
	cnt := newCounting()
	log := resolveLog(opts)
	sink := memsink.New()

	cfg := &pipeline.Config{
		Mode:     buildmode.Server,
		Queue:    asyncqueue.New(),
		Observer: newFanout(cnt, opts.Observer),
		VFS:      resolveVFS(opts),
		Log:      log,
		Sink:     sink,
	}

	discover(fn, cfg)
	cfg.Queue.Wait()

	summary := finalize(cnt, time.Since(start), "Server running at URL")
	summary.Sink = sink
	logSummary(log, opts.Name, summary)
	return summary, nil
}

// runWatch installs the watcher before invoking fn, so the dependency
// tracking FileSave feeds is already wired for the very first build, then
// binds every root the task produced and blocks in the watch loop until a
// shutdown signal arrives.
func runWatch(fn Func, opts Options) (Summary, error) {
	start := time.Now()
	cnt := newCounting()
	log := resolveLog(opts)
	fs := resolveVFS(opts)

	w, err := watch.New(watch.Options{
		FS:            fs,
		Log:           log,
		Ignore:        opts.Ignore,
		DebounceDelay: opts.DebounceDelay,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("task: %w", err)
	}

	cfg := &pipeline.Config{
		Mode:     buildmode.Watch,
		Queue:    asyncqueue.New(),
		Observer: newFanout(cnt, opts.Observer, w),
		VFS:      fs,
		Log:      log,
	}

	roots := discover(fn, cfg)
	cfg.Queue.Wait()

	summary := finalize(cnt, time.Since(start), "Start watching")
	logSummary(log, opts.Name, summary)

	for _, r := range roots {
		if err := w.Bind(r.FileList, opts.Encoding); err != nil {
			w.Close()
			return summary, fmt.Errorf("task: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	grace.Orchestrate(grace.OrchestrateOptions{
		Logger: log,
		StartupCallback: func() error {
			err := w.Run(ctx, cfg.Queue)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
		ShutdownCallback: func(context.Context) error {
			cancel()
			return w.Close()
		},
	})

	return summary, nil
}

// discover runs fn, then drives every returned root's deferred walk
// (source.Root.Discover), matching the deferred-walk contract
// source.Src documents: a task composes its whole chain before any
// directory walk starts.
func discover(fn Func, cfg *pipeline.Config) []*source.Root {
	roots := fn(cfg)
	for _, r := range roots {
		r.Discover()
	}
	return roots
}

func statusFor(mode buildmode.Mode, cnt Counters) string {
	switch mode {
	case buildmode.Clean:
		return "Clean completed"
	case buildmode.Preview:
		return "Preview completed"
	case buildmode.Build:
		if cnt.Errors > 0 {
			return "Build completed (with errors)"
		}
		return "Build success"
	default:
		return "Done"
	}
}

func finalize(cnt *counting, elapsed time.Duration, status string) Summary {
	return Summary{Counters: cnt.snapshot(), Elapsed: elapsed, Status: status}
}

func logSummary(log *slog.Logger, name string, s Summary) {
	log.Info(s.Status,
		"task", name,
		"files", s.Files,
		"errors", s.Errors,
		"warnings", s.Warnings,
		"elapsed", s.Elapsed,
	)
}

// counting is a pipeline.Observer that tallies the files seen and the
// errors/warnings logged against them, independent of whatever other
// Observer a caller or the watcher also wants notified. A file forwarded
// through several lists of a chain is counted once.
type counting struct {
	pipeline.NoopObserver
	mu       sync.Mutex
	seen     map[*dfile.File]bool
	files    int
	errors   int
	warnings int
}

func newCounting() *counting { return &counting{seen: make(map[*dfile.File]bool)} }

func (c *counting) AddFile(_ *pipeline.FileList, f *dfile.File) {
	c.mu.Lock()
	if !c.seen[f] {
		c.seen[f] = true
		c.files++
	}
	c.mu.Unlock()
}

func (c *counting) FileLog(_ *dfile.File, e dfile.Entry) {
	c.mu.Lock()
	switch e.Level {
	case dfile.LevelError:
		c.errors++
	case dfile.LevelWarning:
		c.warnings++
	}
	c.mu.Unlock()
}

func (c *counting) snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{Files: c.files, Errors: c.errors, Warnings: c.warnings}
}

// fanout forwards every Observer event to each delegate in order,
// AND-combining veto-style return values so any one delegate can still
// block an addition. nil delegates are skipped, so callers can pass an
// optional user Observer without a nil check at every call site.
type fanout struct {
	delegates []pipeline.Observer
}

func newFanout(delegates ...pipeline.Observer) *fanout {
	f := &fanout{}
	for _, d := range delegates {
		if d != nil {
			f.delegates = append(f.delegates, d)
		}
	}
	return f
}

func (f *fanout) AddList(l *pipeline.FileList) {
	for _, d := range f.delegates {
		d.AddList(l)
	}
}

func (f *fanout) AddFile(l *pipeline.FileList, file *dfile.File) {
	for _, d := range f.delegates {
		d.AddFile(l, file)
	}
}

func (f *fanout) AddDir(l *pipeline.FileList, dir string, entries []string) {
	for _, d := range f.delegates {
		d.AddDir(l, dir, entries)
	}
}

func (f *fanout) FileLog(file *dfile.File, e dfile.Entry) {
	for _, d := range f.delegates {
		d.FileLog(file, e)
	}
}

func (f *fanout) FileDep(file *dfile.File, path string) bool {
	ok := true
	for _, d := range f.delegates {
		if !d.FileDep(file, path) {
			ok = false
		}
	}
	return ok
}

func (f *fanout) FileRef(file *dfile.File, path string) bool {
	ok := true
	for _, d := range f.delegates {
		if !d.FileRef(file, path) {
			ok = false
		}
	}
	return ok
}

func (f *fanout) FileSave(file *dfile.File) {
	for _, d := range f.delegates {
		d.FileSave(file)
	}
}

func (f *fanout) FileDelete(file *dfile.File) {
	for _, d := range f.delegates {
		d.FileDelete(file)
	}
}

func (f *fanout) FileValidate(file *dfile.File) bool {
	ok := true
	for _, d := range f.delegates {
		if !d.FileValidate(file) {
			ok = false
		}
	}
	return ok
}

func (f *fanout) SourceMapValidate(file *dfile.File, sm *sourcemap.Builder) bool {
	ok := true
	for _, d := range f.delegates {
		if !d.SourceMapValidate(file, sm) {
			ok = false
		}
	}
	return ok
}

var _ pipeline.Observer = (*fanout)(nil)
var _ pipeline.Observer = (*counting)(nil)
