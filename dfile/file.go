// Package dfile implements digo's File entity: an in-memory record of one
// logical artifact with a lazy source/target buffer-text duality, attached
// source-map data, per-file diagnostics, and dependency edges.
package dfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/kit/colorlog"
	"github.com/skyweaver213/digo/kit/lazyget"
	"github.com/skyweaver213/digo/sourcemap"
	"github.com/skyweaver213/digo/vfs"
)

// File is an in-memory record of one logical artifact flowing through a
// pipeline. The zero value is not usable; build one with New.
type File struct {
	mu sync.Mutex

	initialPath string // absolute; "" means generated
	base        string // absolute directory anchoring name
	name        string // relative logical path, "/"-separated
	encoding    string

	source   *slot
	target   *slot
	modified bool

	// lineIndex caches the byte offset of each line start in the file's
	// current content, for ErrorAt-style snippet lookups. It is
	// invalidated whenever buffer or text is (re)written.
	lineIndex lazyget.Cache[[]int]

	sourceMap *sourcemap.Builder

	errorCount, warningCount int
	entries                  []Entry

	deps []string
	refs []string

	stats   *vfs.Stat
	deleted bool

	observer Observer
	vfsys    *vfs.FS
	log      *slog.Logger
}

// Options configures a new File.
type Options struct {
	// InitialPath is the absolute on-disk path this file was discovered
	// at. Leave empty for a processor-generated file.
	InitialPath string
	// Base is the absolute directory anchoring Name; required whenever
	// Name is set.
	Base string
	// Name is the relative logical path using "/". If empty and
	// InitialPath is set, it's derived as the relative path from Base.
	Name string
	// Encoding defaults to DefaultEncoding.
	Encoding string
	VFS      *vfs.FS
	Observer Observer
	Log      *slog.Logger
}

// New builds a File. InitialPath (if set) seeds the source slot's lazy
// loader; it is not read until Load or a content accessor is called.
func New(opts Options) *File {
	f := &File{
		initialPath: opts.InitialPath,
		base:        opts.Base,
		name:        opts.Name,
		encoding:    opts.Encoding,
		observer:    opts.Observer,
		vfsys:       opts.VFS,
		log:         opts.Log,
		source:      &slot{},
		target:      &slot{},
	}
	if f.encoding == "" {
		f.encoding = DefaultEncoding
	}
	if f.observer == nil {
		f.observer = NoopObserver{}
	}
	if f.log == nil {
		f.log = colorlog.New("dfile")
	}
	if f.name == "" && f.initialPath != "" && f.base != "" {
		if rel, err := dpath.Rel(f.base, f.initialPath); err == nil {
			f.name = rel
		}
	}
	if f.initialPath != "" && f.vfsys != nil {
		path := f.initialPath
		fsys := f.vfsys
		f.source.loader = func() ([]byte, error) {
			return fsys.ReadFile(path, 0)
		}
	}
	return f
}

// Generated reports whether this file has no on-disk origin.
func (f *File) Generated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialPath == ""
}

// SrcPath is the file's origin path, or "<generated>" if it has none.
func (f *File) SrcPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initialPath == "" {
		return "<generated>"
	}
	return f.initialPath
}

// Path is base+name, or "" if name was never set.
func (f *File) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathLocked()
}

func (f *File) pathLocked() string {
	if f.name == "" {
		return ""
	}
	return dpath.Join(f.base, f.name)
}

// DestPath is Path(), falling back to SrcPath() when Path is unset.
func (f *File) DestPath() string {
	if p := f.Path(); p != "" {
		return p
	}
	return f.SrcPath()
}

// Dir is the directory portion of Path (or of SrcPath for an unnamed
// file).
func (f *File) Dir() string {
	return dpath.Dir(f.DestPath())
}

// Ext is the extension of Name, including the leading dot.
func (f *File) Ext() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return dpath.Ext(f.name)
}

// Filename is the base name of Name.
func (f *File) Filename() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return dpath.Base(f.name)
}

// Name returns the file's relative logical path.
func (f *File) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

// Base returns the directory anchoring Name.
func (f *File) Base() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base
}

// SetName replaces the relative logical path, atomically recomputing Path.
func (f *File) SetName(name string) {
	f.mu.Lock()
	f.name = name
	f.mu.Unlock()
}

// SetBase replaces the anchoring directory, atomically recomputing Path.
func (f *File) SetBase(base string) {
	f.mu.Lock()
	f.base = base
	f.mu.Unlock()
}

// SetDir replaces Name's directory portion, keeping its filename.
func (f *File) SetDir(dir string) {
	f.mu.Lock()
	filename := dpath.Base(f.name)
	f.name = dpath.Join(dir, filename)
	f.mu.Unlock()
}

// SetExt replaces Name's extension, keeping its base name.
func (f *File) SetExt(ext string) {
	f.mu.Lock()
	base := strings.TrimSuffix(f.name, dpath.Ext(f.name))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	f.name = base + ext
	f.mu.Unlock()
}

// Encoding returns the file's text encoding.
func (f *File) Encoding() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.encoding
}

// SetEncoding replaces the file's text encoding.
func (f *File) SetEncoding(encoding string) {
	f.mu.Lock()
	f.encoding = encoding
	f.mu.Unlock()
}

// Modified reports whether the target slot was ever written.
func (f *File) Modified() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.modified
}

// Exists reports whether this file has any content, loaded or written.
func (f *File) Exists() bool {
	return f.source.HasAny() || f.target.HasAny()
}

// Buffer returns the file's current content as bytes: the target slot if
// a processor has written to it, else the source slot (lazily loaded).
func (f *File) Buffer() ([]byte, error) {
	if f.target.HasAny() {
		return f.target.Buffer(f.Encoding())
	}
	return f.source.Buffer(f.Encoding())
}

// Content returns the file's current content as text, mirroring Buffer.
func (f *File) Content() (string, error) {
	if f.target.HasAny() {
		return f.target.Content(f.Encoding())
	}
	return f.source.Content(f.Encoding())
}

// SetBuffer writes to the target slot, marking the file modified and
// invalidating the cached text form and line-index cache.
func (f *File) SetBuffer(b []byte) {
	f.target.SetBuffer(b)
	f.mu.Lock()
	f.modified = true
	f.mu.Unlock()
	f.lineIndex.Invalidate()
}

// SetContent writes to the target slot, marking the file modified and
// invalidating the cached buffer form and line-index cache.
func (f *File) SetContent(s string) {
	f.target.SetContent(s)
	f.mu.Lock()
	f.modified = true
	f.mu.Unlock()
	f.lineIndex.Invalidate()
}

// SnippetAt returns the source line region.StartLine spans in the file's
// current content (Content(), the 0-indexed line addressed by
// region.StartLine), for use as an Entry's Snippet. It returns "" if the
// line is out of range or the content can't be read. The per-file
// line-start offset table backing this is computed once per content
// generation and cached via kit/lazyget, invalidated by SetBuffer/
// SetContent.
func (f *File) SnippetAt(region Region) string {
	content, err := f.Content()
	if err != nil {
		return ""
	}
	starts := f.lineIndex.Get(func() []int { return lineStarts(content) })
	if region.StartLine < 0 || region.StartLine >= len(starts) {
		return ""
	}
	start := starts[region.StartLine]
	end := len(content)
	if region.StartLine+1 < len(starts) {
		end = starts[region.StartLine+1] - 1 // exclude the line's own "\n"
	}
	if end < start {
		end = start
	}
	return content[start:end]
}

// lineStarts returns the byte offset each line begins at, starting with 0
// for line 0.
func lineStarts(content string) []int {
	starts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// Stats returns the on-disk metadata of the file's origin, stat'ed once
// per File; ok is false for a generated file or when the origin is
// missing.
func (f *File) Stats() (st vfs.Stat, ok bool) {
	f.mu.Lock()
	path := f.initialPath
	fsys := f.vfsys
	cached := f.stats
	f.mu.Unlock()

	if cached != nil {
		return *cached, true
	}
	if path == "" || fsys == nil {
		return vfs.Stat{}, false
	}
	st, exists, err := fsys.StatIfExists(path, 0)
	if err != nil || !exists {
		return vfs.Stat{}, false
	}
	f.mu.Lock()
	f.stats = &st
	f.mu.Unlock()
	return st, true
}

// SrcBuffer and SrcContent always read the source slot, regardless of
// whether the target has been written.
func (f *File) SrcBuffer() ([]byte, error)  { return f.source.Buffer(f.Encoding()) }
func (f *File) SrcContent() (string, error) { return f.source.Content(f.Encoding()) }

// SourceMap returns the file's attached source-map data, or nil.
func (f *File) SourceMap() *sourcemap.Builder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sourceMap
}

// SetSourceMap attaches sm, merging with any previously attached map via
// composition rather than replacing it.
func (f *File) SetSourceMap(sm *sourcemap.Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sourceMap == nil || sm == nil {
		f.sourceMap = sm
		return
	}
	sm.ApplySourceMap(f.sourceMap)
	f.sourceMap = sm
}

// Dep records that f should be invalidated whenever path changes. source
// documents where the edge came from (e.g. an import statement); it is
// informational only. The observer may veto.
func (f *File) Dep(path string, source ...string) {
	if !f.observer.FileDep(f, path) {
		return
	}
	f.mu.Lock()
	f.deps = append(f.deps, path)
	f.mu.Unlock()
}

// Ref records an observed dependency used only to extend the watch set,
// not to force rebuilds.
func (f *File) Ref(path string, source ...string) {
	if !f.observer.FileRef(f, path) {
		return
	}
	f.mu.Lock()
	f.refs = append(f.refs, path)
	f.mu.Unlock()
}

// Deps and Refs return snapshots of the file's dependency edges.
func (f *File) Deps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deps...)
}

func (f *File) Refs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refs...)
}

// Clone shallow-copies the file's identity and duplicates its owned
// buffers, deps, and refs: the primitive a collecting pipeline stage uses
// to retain a stable snapshot while downstream stages mutate later copies.
func (f *File) Clone() *File {
	f.mu.Lock()
	defer f.mu.Unlock()

	clone := &File{
		initialPath: f.initialPath,
		base:        f.base,
		name:        f.name,
		encoding:    f.encoding,
		modified:    f.modified,
		sourceMap:   f.sourceMap,
		deps:        append([]string(nil), f.deps...),
		refs:        append([]string(nil), f.refs...),
		observer:    f.observer,
		vfsys:       f.vfsys,
		log:         f.log,
		source:      f.source.clone(),
		target:      f.target.clone(),
	}
	return clone
}

// MarkDeleted flags this file as representing a removed source path, so a
// Dest stage saves it with buildmode.Clean regardless of the chain's own
// mode.
func (f *File) MarkDeleted() {
	f.mu.Lock()
	f.deleted = true
	f.mu.Unlock()
}

// Deleted reports whether MarkDeleted was called on this file.
func (f *File) Deleted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted
}

// HashName formats pattern (containing a literal "[hash]" placeholder)
// with a short content hash of the file's current buffer, for
// cache-busted output filenames (e.g. "app.[hash].js" ->
// "app.3f9a1c2.js"). This is a naming convenience, not a content-addressed
// build cache: the hash never decides whether work is skipped.
func (f *File) HashName(pattern string) string {
	b, err := f.Buffer()
	if err != nil {
		b = nil
	}
	sum := sha256.Sum256(b)
	short := hex.EncodeToString(sum[:])[:7]
	return strings.Replace(pattern, "[hash]", short, 1)
}

// String renders a human-readable identifier for logging/debugging.
func (f *File) String() string {
	return fmt.Sprintf("File(%s)", f.DestPath())
}

// Mode is re-exported so callers of dfile need not import buildmode
// directly just to call Save.
type Mode = buildmode.Mode
