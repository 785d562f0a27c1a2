package dfile

import "github.com/skyweaver213/digo/sourcemap"

// Observer receives file-level events, one method per event kind, with a
// default no-op implementation. pipeline.Observer embeds this to add the
// list-level events (AddList/AddFile/AddDir).
type Observer interface {
	// FileLog is called for every log/error/warning/verbose entry recorded
	// against a file.
	FileLog(f *File, e Entry)
	// FileDep is called before path is appended to f's deps; returning
	// false vetoes the addition.
	FileDep(f *File, path string) bool
	// FileRef is FileDep's counterpart for refs.
	FileRef(f *File, path string) bool
	// FileSave is called after a successful save, letting the watcher
	// update its dependency map.
	FileSave(f *File)
	// FileDelete is called after a file's on-disk artifact is deleted.
	FileDelete(f *File)
	// FileValidate may reject a file's content before it's written;
	// returning false stops the save and records a file-level error.
	FileValidate(f *File) bool
	// SourceMapValidate may reject a file's attached source map before
	// it's emitted.
	SourceMapValidate(f *File, sm *sourcemap.Builder) bool
}

// NoopObserver implements Observer with no-ops that never veto, the
// default when a caller supplies none.
type NoopObserver struct{}

func (NoopObserver) FileLog(*File, Entry)                       {}
func (NoopObserver) FileDep(*File, string) bool                 { return true }
func (NoopObserver) FileRef(*File, string) bool                 { return true }
func (NoopObserver) FileSave(*File)                              {}
func (NoopObserver) FileDelete(*File)                            {}
func (NoopObserver) FileValidate(*File) bool                     { return true }
func (NoopObserver) SourceMapValidate(*File, *sourcemap.Builder) bool { return true }

var _ Observer = NoopObserver{}
