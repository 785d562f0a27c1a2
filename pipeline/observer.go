package pipeline

import "github.com/skyweaver213/digo/dfile"

// Observer extends dfile.Observer with the list-level events
// (AddList, AddFile, AddDir).
type Observer interface {
	dfile.Observer
	AddList(list *FileList)
	AddFile(list *FileList, file *dfile.File)
	AddDir(list *FileList, dir string, entries []string)
}

// NoopObserver implements Observer with no-ops that never veto.
type NoopObserver struct{ dfile.NoopObserver }

func (NoopObserver) AddList(*FileList)                 {}
func (NoopObserver) AddFile(*FileList, *dfile.File)     {}
func (NoopObserver) AddDir(*FileList, string, []string) {}

var _ Observer = NoopObserver{}
