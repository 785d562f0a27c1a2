package dfile

import (
	"encoding/base64"
	"strings"

	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dpath"
	"github.com/skyweaver213/digo/sourcemap"
)

// Sink is the in-memory write target File.Save redirects to under
// buildmode.Server. memsink.Sink implements this.
type Sink interface {
	Write(destPath string, content []byte)
}

// Load ensures the source slot is populated, reading from disk once.
// Subsequent calls are idempotent. A read failure is recorded as a
// file-level error and the file is left with an empty source buffer;
// processing continues.
func (f *File) Load() error {
	if f.Generated() || f.source.HasAny() {
		return nil
	}
	if _, err := f.source.Buffer(f.Encoding()); err != nil {
		f.Error("failed to load %s: %v", f.SrcPath(), err)
		f.source.SetBuffer(nil)
	}
	return nil
}

// SaveOptions configures a single File.Save call: the source-map and
// overwrite knobs already resolved to plain values by the caller (normally
// a Dest processor resolving its Opt[T] fields against this file).
type SaveOptions struct {
	Mode buildmode.Mode
	// Dir overrides the output directory; empty means DestPath() as-is.
	Dir string

	Overwrite bool

	SourceMap                      bool
	SourceMapInline                bool
	SourceMapEmit                  bool
	SourceMapRoot                  string
	SourceMapIncludeSourcesContent bool
	SourceMapIncludeFile           bool
	SourceMapIncludeNames          bool

	// Sink receives the write instead of disk I/O when Mode is
	// buildmode.Server.
	Sink Sink
}

func (f *File) resolveDest(dir string) string {
	if dir == "" {
		return f.DestPath()
	}
	return dpath.Join(dir, f.Name())
}

// Save writes (or, in clean/preview modes, removes or no-ops) this file's
// current content per buildMode.
func (f *File) Save(opts SaveOptions) error {
	switch opts.Mode {
	case buildmode.Clean:
		return f.saveClean(opts)
	case buildmode.Preview:
		return nil
	default:
		return f.saveWrite(opts)
	}
}

func (f *File) saveWrite(opts SaveOptions) error {
	dest := f.resolveDest(opts.Dir)
	src := f.SrcPath()

	if !f.Modified() && dest == src {
		return nil
	}
	if f.Modified() && dest == src && !opts.Overwrite {
		f.Error("refusing to overwrite source file %s (pass Overwrite to allow)", src)
		return nil
	}

	if !f.observer.FileValidate(f) {
		f.Error("file failed validation, not written")
		return nil
	}

	content, err := f.Buffer()
	if err != nil {
		f.ErrorFrom(err, StackDefault)
		return nil
	}

	mapBytes, content := f.prepareSourceMap(dest, content, opts)

	if opts.Mode == buildmode.Server && opts.Sink != nil {
		opts.Sink.Write(dest, content)
		f.observer.FileSave(f)
		return nil
	}

	if f.vfsys == nil {
		f.Error("no filesystem facade configured, cannot write %s", dest)
		return nil
	}
	if err := f.vfsys.WriteFile(dest, content, 0o644, 0); err != nil {
		f.ErrorFrom(err, StackDefault)
		return nil
	}
	if mapBytes != nil && !opts.SourceMapInline {
		if err := f.vfsys.WriteFile(dest+".map", mapBytes, 0o644, 0); err != nil {
			f.ErrorFrom(err, StackDefault)
		}
	}

	f.observer.FileSave(f)
	return nil
}

// prepareSourceMap finalizes and (if requested) serializes the file's
// source map, returning the map bytes (nil when source maps are off, no
// map is attached, the observer rejects it, or serialization fails) and the
// content with a sourceMappingURL comment appended when enabled.
func (f *File) prepareSourceMap(dest string, content []byte, opts SaveOptions) ([]byte, []byte) {
	sm := f.SourceMap()
	if !opts.SourceMap || sm == nil {
		return nil, content
	}
	if !f.observer.SourceMapValidate(f, sm) {
		return nil, content
	}

	if opts.SourceMapIncludeFile {
		sm.File = dpath.Base(dest)
	}
	if opts.SourceMapRoot != "" {
		sm.SourceRoot = opts.SourceMapRoot
	}
	if !opts.SourceMapIncludeSourcesContent {
		sm.SourcesContent = nil
	}
	if !opts.SourceMapIncludeNames {
		sm.StripNames()
	}

	mapBytes, err := sm.Emit()
	if err != nil {
		f.ErrorFrom(err, StackDefault)
		return nil, content
	}
	if !opts.SourceMapEmit {
		return mapBytes, content
	}

	url := dpath.Base(dest) + ".map"
	if opts.SourceMapInline {
		url = "data:application/json;base64," + base64.StdEncoding.EncodeToString(mapBytes)
	}
	singleLine := !strings.HasSuffix(dest, ".css")
	content = []byte(sourcemap.EmitSourceMapURL(string(content), url, singleLine))
	return mapBytes, content
}

func (f *File) saveClean(opts SaveOptions) error {
	dest := f.resolveDest(opts.Dir)
	if f.vfsys == nil {
		return nil
	}
	f.vfsys.DeleteFile(dest, 0)
	f.vfsys.DeleteFile(dest+".map", 0)
	f.vfsys.PruneEmptyParents(dpath.Dir(dest), opts.Dir)
	f.observer.FileDelete(f)
	return nil
}

// Delete removes the file's on-disk source (a no-op for generated files),
// then prunes the resulting empty parent directory chain.
func (f *File) Delete(deleteEmptyParent bool) error {
	if f.Generated() || f.vfsys == nil {
		return nil
	}
	src := f.SrcPath()
	if err := f.vfsys.DeleteFile(src, 0); err != nil {
		f.ErrorFrom(err, StackDefault)
		return nil
	}
	if deleteEmptyParent {
		f.vfsys.PruneEmptyParents(dpath.Dir(src), f.Base())
	}
	f.observer.FileDelete(f)
	return nil
}
