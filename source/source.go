// Package source implements the glob-driven filesystem walk that seeds a
// root FileList: a one-shot discovery pass over each pattern's base
// directory, feeding every matching file into the pipeline graph.
package source

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/matcher"
	"github.com/skyweaver213/digo/pipeline"
	"github.com/skyweaver213/digo/vfs"
)

// Options configures a Src walk.
type Options struct {
	// Encoding sets the encoding each discovered File is created with.
	Encoding string
	// Ignore is tested against every candidate path in addition to the
	// root matcher's own excludes, before recursing into a directory or
	// emitting a file.
	Ignore matcher.Pattern
}

// Root is the FileList a Src call produces, plus the deferred walk that
// seeds it. The walk must not start until the caller has finished
// composing every downstream stage, so it is an explicit second step:
// build the whole chain off of Root, then call Discover once to run it
// (normally done by the task runner after the task body returns).
type Root struct {
	*pipeline.FileList
	walker *walker
}

// Src compiles pattern into a Matcher and returns its root FileList,
// ready for the caller to extend with Pipe/Dest/Src/Clone/Then. Call
// Discover on the returned Root once the chain is fully built to walk
// each pattern's base directory and seed it.
func Src(pattern matcher.Pattern, cfg *pipeline.Config, opts *Options) *Root {
	m := matcher.New(pattern, nil)
	root := pipeline.NewRoot(m, cfg)
	c := root.Config()

	w := &walker{
		root:     root,
		matcher:  m,
		fs:       c.VFS,
		log:      c.Log,
		observer: c.Observer,
	}
	if opts != nil {
		w.encoding = opts.Encoding
		if opts.Ignore != nil {
			w.ignore = matcher.New(opts.Ignore, nil)
		}
	}

	return &Root{FileList: root, walker: w}
}

// Discover walks each of the matcher's pattern bases, adding every
// matching file to the root list, then closes it. It must be called
// exactly once per Root.
func (r *Root) Discover() {
	for _, base := range r.walker.matcher.Bases() {
		r.walker.walkDir(base, base)
	}
	r.FileList.End()
}

type walker struct {
	root     *pipeline.FileList
	matcher  *matcher.Matcher
	ignore   *matcher.Matcher
	fs       *vfs.FS
	log      *slog.Logger
	observer pipeline.Observer
	encoding string
}

func (w *walker) walkDir(dir, base string) {
	entries, err := w.fs.ReadDir(dir, 0)
	if err != nil {
		w.log.Warn("source: walk error", "path", dir, "err", err)
		return
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	w.observer.AddDir(w.root, dir, names)

	for _, e := range entries {
		path := dpath.Join(dir, e.Name)
		if w.ignored(path) {
			w.log.Debug("source: ignored path", "path", path)
			continue
		}

		if e.IsDir {
			w.walkDir(path, base)
			continue
		}

		if !w.matcher.Test(path) {
			w.log.Debug("source: no pattern match", "path", path)
			continue
		}

		f := dfile.New(dfile.Options{
			InitialPath: path,
			Base:        base,
			Encoding:    w.encoding,
			VFS:         w.fs,
			Observer:    w.observer,
			Log:         w.log,
		})
		w.root.Add(f)
	}
}

func (w *walker) ignored(path string) bool {
	return w.ignore != nil && w.ignore.Test(path)
}

// LoadIgnoreFile reads a file of glob patterns (one per line, "#" comments
// and blank lines skipped) for use as Options.Ignore, the way an ignoreFile
// configuration entry contributes patterns to the global matcher.
func LoadIgnoreFile(fsys *vfs.FS, path string) ([]matcher.Pattern, error) {
	data, err := fsys.ReadFile(path, 0)
	if err != nil {
		return nil, fmt.Errorf("source: read ignore file: %w", err)
	}

	var patterns []matcher.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}
