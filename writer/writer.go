// Package writer implements the append-only text writer that concatenates
// fragments into one output while tracking a consistent source map, as a
// fragment-at-a-time Writer/SourceMapWriter pair.
package writer

import (
	"strings"
	"unicode"

	"github.com/skyweaver213/digo/dfile"
	"github.com/skyweaver213/digo/sourcemap"
)

// Writer concatenates text fragments into a single buffer, tracking
// generated line/column and inserting the current indent after a newline
// when more text follows it within the same Write call. A newline that
// ends a Write is not followed by the indent, and the next Write's text
// starts unindented. It does not track source-map mappings; use
// SourceMapWriter for that.
type Writer struct {
	sb     strings.Builder
	line   int
	column int
	indent string
}

// New returns an empty Writer.
func New() *Writer { return &Writer{} }

// SetIndent sets the string inserted, from here on, after each newline
// that is followed by more text in the same Write call.
func (w *Writer) SetIndent(indent string) { w.indent = indent }

// Line and Column report the writer's current generated position.
func (w *Writer) Line() int   { return w.line }
func (w *Writer) Column() int { return w.column }

// Write appends content (already sliced by the caller to [start:end) when
// those are non-negative) to the buffer, normalizing CRLF to LF for line
// counting while emitting the original bytes verbatim.
func (w *Writer) Write(content string, start, end int) {
	if start >= 0 || end >= 0 {
		content = sliceFragment(content, start, end)
	}
	w.emit(content)
}

func sliceFragment(content string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end < 0 || end > len(content) {
		end = len(content)
	}
	if start > end {
		start = end
	}
	return content[start:end]
}

func (w *Writer) emit(content string) {
	i := 0
	for i < len(content) {
		nl := strings.IndexByte(content[i:], '\n')
		if nl < 0 {
			w.writeRaw(content[i:])
			break
		}
		lineEnd := i + nl
		// normalize a preceding \r for line counting only; both bytes are
		// still written verbatim.
		w.writeRaw(content[i: lineEnd+1])
		i = lineEnd + 1
		w.line++
		w.column = 0
		if w.indent != "" && i < len(content) {
			w.writeRaw(w.indent)
			w.column += len(w.indent)
		}
	}
}

func (w *Writer) writeRaw(s string) {
	w.sb.WriteString(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		w.column = len(s) - idx - 1
	} else {
		w.column += len(s)
	}
}

// String returns the accumulated buffer.
func (w *Writer) String() string { return w.sb.String() }

// End assigns the accumulated buffer to file's target content.
func (w *Writer) End(file *dfile.File) {
	file.SetContent(w.String())
}

// charClass is the identifier/whitespace/punctuation partition
// SourceMapWriter uses to decide extra mapping-insertion points.
type charClass int

const (
	classOther charClass = iota
	classIdent
	classSpace
)

func classify(r rune) charClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$':
		return classIdent
	default:
		return classOther
	}
}

// SourceMapWriter is a Writer that additionally builds a SourceMapBuilder
// as fragments are appended.
type SourceMapWriter struct {
	Writer
	sm               *sourcemap.Builder
	lineMappingsOnly bool
}

// NewSourceMapWriter returns an empty SourceMapWriter. If
// lineMappingsOnly is true, only one mapping is inserted per fragment
// (skipping the identifier/whitespace/punctuation transition points) to
// keep map size down.
func NewSourceMapWriter(lineMappingsOnly bool) *SourceMapWriter {
	return &SourceMapWriter{sm: sourcemap.NewBuilder(), lineMappingsOnly: lineMappingsOnly}
}

// WriteMapped appends content, inserting a mapping at its first character
// and at every identifier/whitespace/punctuation class transition, each
// pointing back at srcPath/srcLine/srcCol offset by how far into content
// the mapping point falls.
func (w *SourceMapWriter) WriteMapped(content, srcPath string, srcLine, srcCol int) {
	if content == "" {
		return
	}
	srcIdx := w.sm.AddSource(srcPath, nil)

	genLine, genCol := w.Line(), w.Column()
	w.sm.AddMapping(genLine, genCol, srcIdx, srcLine, srcCol, sourcemap.NoIndex)

	if !w.lineMappingsOnly {
		w.addTransitionMappings(content, srcIdx, srcLine, srcCol)
	}

	w.Write(content, -1, -1)
}

func (w *SourceMapWriter) addTransitionMappings(content string, srcIdx, srcLine, srcCol int) {
	runes := []rune(content)
	prevClass := classify(runes[0])
	line, col := w.Line(), w.Column()
	srcLineOffset, srcColOffset := srcLine, srcCol

	for i := 1; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			line++
			col = 0
			srcLineOffset++
			srcColOffset = srcCol
			prevClass = classify(r)
			continue
		}
		col++
		srcColOffset++
		cls := classify(r)
		if cls != prevClass {
			w.sm.AddMapping(line, col, srcIdx, srcLineOffset, srcColOffset, sourcemap.NoIndex)
		}
		prevClass = cls
	}
}

// SpliceSourceMap copies mappings from fragment's own source map into w's
// map, adjusted to w's current column, limited to the overlapping column
// range: first-line mappings below fragmentStartCol and last-line mappings
// at or beyond fragmentEndCol are dropped.
func (w *SourceMapWriter) SpliceSourceMap(fragment *sourcemap.Builder, fragmentStartCol, fragmentEndCol int) {
	baseLine, baseCol := w.Line(), w.Column()

	for line, row := range fragment.Mappings {
		for _, m := range row {
			if line == 0 && m.GeneratedColumn < fragmentStartCol {
				continue
			}
			lastLine := len(fragment.Mappings) - 1
			if line == lastLine && m.GeneratedColumn >= fragmentEndCol {
				continue
			}

			genLine := baseLine + line
			genCol := m.GeneratedColumn
			if line == 0 {
				genCol = baseCol + (m.GeneratedColumn - fragmentStartCol)
			}

			if !m.HasSource() {
				continue
			}
			srcIdx := w.sm.AddSource(fragment.Sources[m.SourceIndex], nil)
			nameIdx := sourcemap.NoIndex
			if m.HasName() {
				nameIdx = w.sm.AddName(fragment.Names[m.NameIndex])
			}
			w.sm.AddMapping(genLine, genCol, srcIdx, m.SourceLine, m.SourceColumn, nameIdx)
		}
	}
}

// SourceMap returns the map built so far.
func (w *SourceMapWriter) SourceMap() *sourcemap.Builder { return w.sm }

// End assigns the accumulated buffer and map to file.
func (w *SourceMapWriter) End(file *dfile.File) {
	file.SetContent(w.String())
	file.SetSourceMap(w.sm)
}
