package pipeline

import (
	"github.com/skyweaver213/digo/buildmode"
	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/matcher"
)

// DestOptions configures a Dest stage; Mode is supplied by the chain's
// Config, not by the caller.
// SourceMap is a per-file option: pass dfile.Const(true) for a blanket
// toggle or dfile.Computed for a per-file predicate.
type DestOptions struct {
	Overwrite                      bool
	SourceMap                      dfile.Opt[bool]
	SourceMapInline                bool
	SourceMapEmit                  bool
	SourceMapRoot                  string
	SourceMapIncludeSourcesContent bool
	SourceMapIncludeFile           bool
	SourceMapIncludeNames          bool
	Sink                           dfile.Sink
}

// Dest appends a stage that saves each arriving file under dir, forwarding
// it afterward regardless of outcome; write errors are recorded on the
// file and do not stop the pipeline.
func (l *FileList) Dest(dir string, opts DestOptions) *FileList {
	mode := l.cfg.Mode
	p := &Processor{
		Name: "dest",
		Add: SyncAdd(func(file *dfile.File) bool {
			saveMode := mode
			if file.Deleted() {
				saveMode = buildmode.Clean
			}
			file.Save(dfile.SaveOptions{
				Mode:                           saveMode,
				Dir:                            dir,
				Overwrite:                      opts.Overwrite,
				SourceMap:                      opts.SourceMap.Resolve(file),
				SourceMapInline:                opts.SourceMapInline,
				SourceMapEmit:                  opts.SourceMapEmit,
				SourceMapRoot:                  opts.SourceMapRoot,
				SourceMapIncludeSourcesContent: opts.SourceMapIncludeSourcesContent,
				SourceMapIncludeFile:           opts.SourceMapIncludeFile,
				SourceMapIncludeNames:          opts.SourceMapIncludeNames,
				Sink:                           opts.Sink,
			})
			return true
		}),
	}
	return l.Pipe(p, opts)
}

// Delete appends a stage that removes each arriving file's on-disk output
// (a forced buildmode.Clean save), regardless of the chain's actual mode.
func (l *FileList) Delete(dir string) *FileList {
	p := &Processor{
		Name: "delete",
		Add: SyncAdd(func(file *dfile.File) bool {
			file.Save(dfile.SaveOptions{Mode: buildmode.Clean, Dir: dir})
			return true
		}),
	}
	return l.Pipe(p, nil)
}

// Src appends a passthrough stage that forwards a file only when its
// destination path matches pattern.
func (l *FileList) Src(pattern matcher.Pattern) *FileList {
	m := matcher.New(pattern, nil)
	p := &Processor{
		Name: "src",
		Add: SyncAdd(func(file *dfile.File) bool {
			return m.Test(file.DestPath())
		}),
	}
	return l.Pipe(p, nil)
}

// Clone appends a stage that hands a distinct Clone() of each arriving
// file to downstream stages, so a later mutation there doesn't affect the
// file a caller retained a reference to.
func (l *FileList) Clone() *FileList {
	next := l.Pipe(&Processor{Name: "clone"}, nil)
	next.cloneBeforeForward = true
	return next
}

// Then appends a non-collecting terminal stage that invokes fn
// synchronously once per file and always keeps the file in the chain. A
// callback that completes asynchronously goes through ThenAsync instead.
func (l *FileList) Then(fn func(file *dfile.File)) *FileList {
	p := &Processor{
		Name: "then",
		Add: SyncAdd(func(file *dfile.File) bool {
			fn(file)
			return true
		}),
	}
	return l.Pipe(p, nil)
}

// ThenAsync is Then for a callback that completes asynchronously.
func (l *FileList) ThenAsync(fn func(file *dfile.File, done func())) *FileList {
	p := &Processor{
		Name: "then",
		Add: AsyncAdd(func(file *dfile.File, done func(keep bool)) {
			fn(file, func() { done(true) })
		}),
	}
	return l.Pipe(p, nil)
}
