// Package sourcemap implements the Source Map Revision 3 format: parsing,
// generation (including Base64-VLQ encoding), mapping-table queries, and
// composition of maps across pipeline stages.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NoIndex marks the absence of a source or name index on a Mapping.
const NoIndex = -1

// Mapping is one point in a generated line's mapping row.
type Mapping struct {
	GeneratedColumn int
	SourceIndex     int // NoIndex if this mapping carries no source position
	SourceLine      int
	SourceColumn    int
	NameIndex       int // NoIndex if unnamed
}

// HasSource reports whether this mapping carries a source position.
func (m Mapping) HasSource() bool { return m.SourceIndex != NoIndex }

// HasName reports whether this mapping carries a name.
func (m Mapping) HasName() bool { return m.NameIndex != NoIndex }

// Builder is a mutable Source Map v3 structure: sources, optional per-source
// contents, names, and a sparse per-generated-line mapping table.
type Builder struct {
	File           string
	SourceRoot     string
	Sources        []string
	SourcesContent []*string // parallel to Sources; nil entry means "no content recorded"
	Names          []string
	// Mappings[line] is the sorted-by-GeneratedColumn list of points for
	// generated line `line` (0-indexed). A nil/empty slice means no
	// mappings were recorded for that line.
	Mappings [][]Mapping

	sourceIndex map[string]int
	nameIndex   map[string]int
}

// NewBuilder returns an empty Builder ready for AddMapping calls.
func NewBuilder() *Builder {
	return &Builder{
		sourceIndex: make(map[string]int),
		nameIndex:   make(map[string]int),
	}
}

// AddSource registers a source path (deduplicated) and returns its index.
// If content is non-nil it is recorded as that source's sourcesContent entry.
func (b *Builder) AddSource(path string, content *string) int {
	if idx, ok := b.sourceIndex[path]; ok {
		if content != nil {
			b.ensureSourcesContentLen()
			b.SourcesContent[idx] = content
		}
		return idx
	}
	idx := len(b.Sources)
	b.Sources = append(b.Sources, path)
	b.sourceIndex[path] = idx
	b.ensureSourcesContentLen()
	b.SourcesContent[idx] = content
	return idx
}

func (b *Builder) ensureSourcesContentLen() {
	for len(b.SourcesContent) < len(b.Sources) {
		b.SourcesContent = append(b.SourcesContent, nil)
	}
}

// AddName registers a name (deduplicated) and returns its index.
func (b *Builder) AddName(name string) int {
	if idx, ok := b.nameIndex[name]; ok {
		return idx
	}
	idx := len(b.Names)
	b.Names = append(b.Names, name)
	b.nameIndex[name] = idx
	return idx
}

// AddMapping inserts a mapping point at (genLine, genCol), insertion-sorted
// by generated column. A mapping already present at the same column on the
// same line is replaced.
func (b *Builder) AddMapping(genLine, genCol int, sourceIndex, sourceLine, sourceColumn, nameIndex int) {
	b.growTo(genLine)
	row := b.Mappings[genLine]

	i := sort.Search(len(row), func(i int) bool { return row[i].GeneratedColumn >= genCol })
	m := Mapping{
		GeneratedColumn: genCol,
		SourceIndex:     sourceIndex,
		SourceLine:      sourceLine,
		SourceColumn:    sourceColumn,
		NameIndex:       nameIndex,
	}

	if i < len(row) && row[i].GeneratedColumn == genCol {
		row[i] = m
	} else {
		row = append(row, Mapping{})
		copy(row[i+1:], row[i:])
		row[i] = m
	}
	b.Mappings[genLine] = row
}

func (b *Builder) growTo(line int) {
	for len(b.Mappings) <= line {
		b.Mappings = append(b.Mappings, nil)
	}
}

// SourcePosition is the result of a GetSource query.
type SourcePosition struct {
	Source  string
	Line    int
	Column  int
	Name    string
	HasName bool
}

// GetSource finds the greatest mapping whose GeneratedColumn <= genCol on
// genLine. If no mapping exists on that line, it walks backward to the
// last mapped prior line and projects the position forward by line delta.
func (b *Builder) GetSource(genLine, genCol int) (SourcePosition, bool) {
	line := genLine
	if line >= len(b.Mappings) {
		line = len(b.Mappings) - 1
	}
	for line >= 0 && len(b.Mappings[line]) == 0 {
		line--
	}
	if line < 0 || line >= len(b.Mappings) {
		return SourcePosition{}, false
	}

	row := b.Mappings[line]
	if line != genLine {
		// Backward-projected from the prior mapped line's trailing mapping:
		// carry the line delta forward and take the queried column as-is.
		pos, ok := b.resolve(row[len(row)-1])
		if !ok {
			return pos, false
		}
		pos.Line += genLine - line
		pos.Column = genCol
		pos.Name = ""
		pos.HasName = false
		return pos, true
	}

	i := sort.Search(len(row), func(i int) bool { return row[i].GeneratedColumn > genCol }) - 1
	if i < 0 {
		return SourcePosition{}, false
	}
	return b.resolve(row[i])
}

func (b *Builder) resolve(m Mapping) (SourcePosition, bool) {
	if !m.HasSource() {
		return SourcePosition{}, false
	}
	pos := SourcePosition{
		Source: b.sourceAt(m.SourceIndex),
		Line:   m.SourceLine,
		Column: m.SourceColumn,
	}
	if m.HasName() {
		pos.Name = b.nameAt(m.NameIndex)
		pos.HasName = true
	}
	return pos, true
}

func (b *Builder) sourceAt(i int) string {
	if i < 0 || i >= len(b.Sources) {
		return ""
	}
	return b.Sources[i]
}

func (b *Builder) nameAt(i int) string {
	if i < 0 || i >= len(b.Names) {
		return ""
	}
	return b.Names[i]
}

// GeneratedPosition is the result of a GetGenerated query.
type GeneratedPosition struct {
	Line   int
	Column int
}

// GetGenerated scans the mapping table for points matching srcPath/srcLine
// and projects them to a generated position, constraining the projected
// column to lie within that mapping's column span, bounded by the next
// mapping on the same generated line, if any.
func (b *Builder) GetGenerated(srcPath string, srcLine, srcCol int) (GeneratedPosition, bool) {
	srcIdx, ok := b.sourceIndex[srcPath]
	if !ok {
		return GeneratedPosition{}, false
	}

	for line, row := range b.Mappings {
		for i, m := range row {
			if !m.HasSource() || m.SourceIndex != srcIdx || m.SourceLine != srcLine {
				continue
			}
			if srcCol < m.SourceColumn {
				continue
			}
			delta := srcCol - m.SourceColumn
			genCol := m.GeneratedColumn + delta

			if i+1 < len(row) && genCol >= row[i+1].GeneratedColumn {
				continue // falls outside this mapping's span
			}
			return GeneratedPosition{Line: line, Column: genCol}, true
		}
	}
	return GeneratedPosition{}, false
}

// ComputeLines fills missing per-line rows by propagating the previous
// line's trailing mapping one logical line downward.
func (b *Builder) ComputeLines() {
	for i := 1; i < len(b.Mappings); i++ {
		if len(b.Mappings[i]) != 0 {
			continue
		}
		prev := b.Mappings[i-1]
		if len(prev) == 0 {
			continue
		}
		b.Mappings[i] = []Mapping{prev[len(prev)-1]}
	}
}

// ApplySourceMap rewrites b's mappings so that, wherever b points into
// source S (named by upstream.File), they instead point through upstream
// to upstream's own sources. S's source index is dropped from b once no
// mapping references it.
func (b *Builder) ApplySourceMap(upstream *Builder) {
	sIdx, ok := b.sourceIndex[upstream.File]
	if !ok {
		return
	}

	for line, row := range b.Mappings {
		var rewritten []Mapping
		for i, m := range row {
			if !m.HasSource() || m.SourceIndex != sIdx {
				rewritten = append(rewritten, m)
				continue
			}

			origin, ok := upstream.GetSource(m.SourceLine, m.SourceColumn)
			if !ok {
				continue // drop mappings upstream no longer accounts for
			}
			newIdx := b.AddSource(origin.Source, nil)
			newMapping := m
			newMapping.SourceIndex = newIdx
			newMapping.SourceLine = origin.Line
			newMapping.SourceColumn = origin.Column
			if origin.HasName {
				newMapping.NameIndex = b.AddName(origin.Name)
			}
			rewritten = append(rewritten, newMapping)

			// Insert extra points for every upstream mapping whose source
			// column falls strictly within this mapping's span, so a
			// single b-mapping spanning multiple upstream mappings still
			// resolves at fine grain.
			span := nextColumn(row, i) - m.GeneratedColumn
			if span <= 0 {
				continue
			}
			if upLine := m.SourceLine; upLine >= 0 && upLine < len(upstream.Mappings) {
				for _, um := range upstream.Mappings[upLine] {
					if um.GeneratedColumn <= m.SourceColumn || um.GeneratedColumn >= m.SourceColumn+span {
						continue
					}
					offset := um.GeneratedColumn - m.SourceColumn
					extra := Mapping{GeneratedColumn: m.GeneratedColumn + offset, SourceIndex: NoIndex, NameIndex: NoIndex}
					if um.HasSource() {
						extra.SourceIndex = b.AddSource(upstream.sourceAt(um.SourceIndex), nil)
						extra.SourceLine = um.SourceLine
						extra.SourceColumn = um.SourceColumn
					}
					rewritten = append(rewritten, extra)
				}
			}
		}
		sort.SliceStable(rewritten, func(i, j int) bool { return rewritten[i].GeneratedColumn < rewritten[j].GeneratedColumn })
		b.Mappings[line] = rewritten
	}

	b.pruneUnusedSource(sIdx)
}

func nextColumn(row []Mapping, i int) int {
	if i+1 < len(row) {
		return row[i+1].GeneratedColumn
	}
	return int(^uint(0) >> 1) // effectively unbounded
}

// pruneUnusedSource removes a source entry that no mapping references any
// longer, shifting later indices down.
func (b *Builder) pruneUnusedSource(idx int) {
	for _, row := range b.Mappings {
		for _, m := range row {
			if m.HasSource() && m.SourceIndex == idx {
				return // still referenced
			}
		}
	}

	removed := b.Sources[idx]
	b.Sources = append(b.Sources[:idx], b.Sources[idx+1:]...)
	if idx < len(b.SourcesContent) {
		b.SourcesContent = append(b.SourcesContent[:idx], b.SourcesContent[idx+1:]...)
	}
	delete(b.sourceIndex, removed)
	for path, i := range b.sourceIndex {
		if i > idx {
			b.sourceIndex[path] = i - 1
		}
	}
	for line, row := range b.Mappings {
		for i, m := range row {
			if m.HasSource() && m.SourceIndex > idx {
				row[i].SourceIndex = m.SourceIndex - 1
			}
		}
		b.Mappings[line] = row
	}
}

// StripNames drops the names table and every mapping's name reference, so a
// map can be emitted with the optional names field disabled without leaving
// dangling name indices in the mappings string.
func (b *Builder) StripNames() {
	b.Names = nil
	b.nameIndex = make(map[string]int)
	for _, row := range b.Mappings {
		for i := range row {
			row[i].NameIndex = NoIndex
		}
	}
}

// jsonMap is the on-disk v3 JSON shape.
type jsonMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// Emit serializes b into a Source Map v3 JSON document.
func (b *Builder) Emit() ([]byte, error) {
	var sb strings.Builder

	prevGenLine := 0
	// generated column deltas reset per line; source/name deltas accumulate
	// across the whole mappings string.
	prevSrc, prevSrcLine, prevSrcCol, prevName := 0, 0, 0, 0
	for genLine, row := range b.Mappings {
		if genLine > 0 {
			for i := 0; i < genLine-prevGenLine; i++ {
				sb.WriteByte(';')
			}
		}
		prevGenLine = genLine

		prevGenCol := 0
		for i, m := range row {
			if i > 0 {
				sb.WriteByte(',')
			}
			encodeVLQ(&sb, m.GeneratedColumn-prevGenCol)
			prevGenCol = m.GeneratedColumn

			if m.HasSource() {
				encodeVLQ(&sb, m.SourceIndex-prevSrc)
				prevSrc = m.SourceIndex
				encodeVLQ(&sb, m.SourceLine-prevSrcLine)
				prevSrcLine = m.SourceLine
				encodeVLQ(&sb, m.SourceColumn-prevSrcCol)
				prevSrcCol = m.SourceColumn

				if m.HasName() {
					encodeVLQ(&sb, m.NameIndex-prevName)
					prevName = m.NameIndex
				}
			}
		}
	}

	jm := jsonMap{
		Version:        3,
		File:           b.File,
		SourceRoot:     b.SourceRoot,
		Sources:        orEmpty(b.Sources),
		SourcesContent: b.SourcesContent,
		Names:          orEmpty(b.Names),
		Mappings:       sb.String(),
	}
	return json.Marshal(jm)
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Parse decodes a Source Map v3 JSON document. It rejects indexed
// ("sections") maps and any version other than 3.
func Parse(data []byte) (*Builder, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sourcemap: invalid JSON: %w", err)
	}
	if _, isSections := raw["sections"]; isSections {
		return nil, fmt.Errorf("sourcemap: indexed (sections) maps are not supported")
	}

	var jm jsonMap
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, fmt.Errorf("sourcemap: %w", err)
	}
	if jm.Version != 3 {
		return nil, fmt.Errorf("sourcemap: unsupported version %d (only v3 is supported)", jm.Version)
	}

	b := NewBuilder()
	b.File = jm.File
	b.SourceRoot = jm.SourceRoot
	for _, name := range jm.Names {
		b.AddName(name)
	}
	for i, src := range jm.Sources {
		var content *string
		if i < len(jm.SourcesContent) {
			content = jm.SourcesContent[i]
		}
		b.AddSource(src, content)
	}

	if err := b.decodeMappings(jm.Mappings); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Builder) decodeMappings(encoded string) error {
	genLine := 0
	prevGenCol, prevSrc, prevSrcLine, prevSrcCol, prevName := 0, 0, 0, 0, 0

	for _, lineStr := range strings.Split(encoded, ";") {
		prevGenCol = 0
		for _, seg := range strings.Split(lineStr, ",") {
			if seg == "" {
				continue
			}
			fields, err := decodeSegment(seg)
			if err != nil {
				return fmt.Errorf("sourcemap: line %d: %w", genLine, err)
			}

			prevGenCol += fields[0]
			m := Mapping{GeneratedColumn: prevGenCol, SourceIndex: NoIndex, NameIndex: NoIndex}

			if len(fields) >= 4 {
				prevSrc += fields[1]
				prevSrcLine += fields[2]
				prevSrcCol += fields[3]
				m.SourceIndex = prevSrc
				m.SourceLine = prevSrcLine
				m.SourceColumn = prevSrcCol
			}
			if len(fields) >= 5 {
				prevName += fields[4]
				m.NameIndex = prevName
			}

			b.growTo(genLine)
			b.Mappings[genLine] = append(b.Mappings[genLine], m)
		}
		genLine++
	}
	return nil
}

func decodeSegment(seg string) ([]int, error) {
	var fields []int
	pos := 0
	for pos < len(seg) {
		v, next, err := decodeVLQ(seg, pos)
		if err != nil {
			return nil, err
		}
		fields = append(fields, v)
		pos = next
	}
	if len(fields) != 1 && len(fields) != 4 && len(fields) != 5 {
		return nil, fmt.Errorf("invalid mapping segment %q", seg)
	}
	return fields, nil
}
