// Package pipeline implements the FileList / Processor graph: a linked
// chain of lists, each wrapping a processor that receives files from its
// predecessor and forwards them to the next list after processing, with
// per-file and batch-collected modes, composed by the user through
// pipe/dest/src/clone/then.
package pipeline

import "github.com/skyweaver213/digo/dfile"

// AddHook is the per-file processing step a Processor declares. It is
// either a SyncAdd or an AsyncAdd, chosen explicitly at construction.
type AddHook interface{ isAddHook() }

// SyncAdd processes a file and returns whether to keep forwarding it.
type SyncAdd func(file *dfile.File) (keep bool)

func (SyncAdd) isAddHook() {}

// AsyncAdd processes a file, calling done(keep) exactly once when
// finished, possibly from another goroutine.
type AsyncAdd func(file *dfile.File, done func(keep bool))

func (AsyncAdd) isAddHook() {}

// Processor is a descriptor of the hooks a FileList invokes as files flow
// through it. All hooks are optional; a nil Add is a pure
// passthrough.
type Processor struct {
	Name string

	// Init runs once when the list is created.
	Init func(opts any, result *FileList)
	// Before runs once, lazily, just before the first file arrives.
	Before func(opts any, result *FileList)
	// Add runs once per arriving file.
	Add AddHook
	// After runs once the list's pending counter returns to zero and
	// upstream has ended, before End.
	After func(opts any, result *FileList)
	// End runs once, after After, with the collected buffer when Collect
	// is set (nil otherwise). It must call done() exactly once.
	End func(files []*dfile.File, opts any, result *FileList, done func())

	// Load forces each file to load its source content before Add runs.
	Load bool
	// Collect additionally keeps a clone of every file in an ordered,
	// initialPath-keyed buffer that End receives; files are still
	// forwarded downstream as they arrive.
	Collect bool
}
