package dfile

import "fmt"

// Level distinguishes the four diagnostic entry points on File.
type Level int

const (
	LevelLog Level = iota
	LevelWarning
	LevelError
	LevelVerbose
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelVerbose:
		return "verbose"
	default:
		return "log"
	}
}

// Region is an optional source span an Entry points at.
type Region struct {
	StartLine, StartColumn int
	EndLine, EndColumn     int
}

// StackPolicy controls whether an Entry's underlying error is printed with
// a stack trace by whatever sink renders it.
type StackPolicy int

const (
	StackDefault StackPolicy = iota
	StackAlways
	StackNever
)

// Entry is the single diagnostic record type every log/error/warning/
// verbose call funnels into.
type Entry struct {
	Level   Level
	Message string
	Args    []any
	File    *File
	Region  *Region
	Snippet string
	Err     error
	Stack   StackPolicy
}

func (e Entry) String() string {
	if len(e.Args) > 0 {
		return fmt.Sprintf(e.Message, e.Args...)
	}
	return e.Message
}

// record appends entry to the file's diagnostic log, updates its counters,
// remaps it through source-map data when applicable, and notifies the
// observer.
func (f *File) record(e Entry) {
	e.File = f
	e = f.remapThroughSourceMap(e)

	f.mu.Lock()
	switch e.Level {
	case LevelError:
		f.errorCount++
	case LevelWarning:
		f.warningCount++
	}
	f.entries = append(f.entries, e)
	obs := f.observer
	f.mu.Unlock()

	if obs != nil {
		obs.FileLog(e.File, e)
	}
}

// remapThroughSourceMap rewrites an entry carrying a generated-position
// Region to point at the mapped original position when the file has
// source-map data attached. Substituting a different File object when the
// origin lives elsewhere is left to the caller: this package has no
// file-registry to resolve a source path back to a *File, so the remapped
// Region keeps its resolved line/column and the message gains the resolved
// source path for context.
func (f *File) remapThroughSourceMap(e Entry) Entry {
	f.mu.Lock()
	sm := f.sourceMap
	f.mu.Unlock()

	if sm == nil || e.Region == nil {
		return e
	}
	pos, ok := sm.GetSource(e.Region.StartLine, e.Region.StartColumn)
	if !ok {
		return e
	}
	e.Region = &Region{StartLine: pos.Line, StartColumn: pos.Column}
	e.Message = fmt.Sprintf("%s (%s:%d:%d)", e.Message, pos.Source, pos.Line, pos.Column)
	return e
}

// Log records an informational entry.
func (f *File) Log(message string, args ...any) {
	f.record(Entry{Level: LevelLog, Message: message, Args: args})
}

// Warning records a warning entry.
func (f *File) Warning(message string, args ...any) {
	f.record(Entry{Level: LevelWarning, Message: message, Args: args})
}

// Error records an error entry.
func (f *File) Error(message string, args ...any) {
	f.record(Entry{Level: LevelError, Message: message, Args: args})
}

// ErrorAt records an error entry carrying a region and source snippet.
func (f *File) ErrorAt(region Region, snippet, message string, args ...any) {
	f.record(Entry{Level: LevelError, Message: message, Args: args, Region: &region, Snippet: snippet})
}

// ErrorFrom records an error entry wrapping a Go error.
func (f *File) ErrorFrom(err error, stack StackPolicy) {
	f.record(Entry{Level: LevelError, Message: err.Error(), Err: err, Stack: stack})
}

// Verbose records a verbose/diagnostic-only entry.
func (f *File) Verbose(message string, args ...any) {
	f.record(Entry{Level: LevelVerbose, Message: message, Args: args})
}

// ErrorCount and WarningCount report this file's diagnostic counters.
func (f *File) ErrorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errorCount
}

func (f *File) WarningCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.warningCount
}

// Entries returns a snapshot of this file's recorded diagnostics.
func (f *File) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Entry(nil), f.entries...)
}
