package ast

import "fmt"

// SourceLoc marks a span in surface syntax. The builder never parses
// anything itself (the parser is an external collaborator, see spec §6),
// but every requirement and type expression it is handed carries one of
// these so diagnostics can point back at source.
type SourceLoc struct {
	filePath string
	content  []rune
	start    uint32
	end      uint32
}

func NewSourceLoc(filePath string, content []rune, start, end uint32) SourceLoc {
	return SourceLoc{filePath: filePath, content: content, start: start, end: end}
}

// NoLoc is used for requirements synthesized by the builder itself
// (inferred, derived-via-parent, nested-type-name-match, ...): they have
// no written location and so are never candidates for redundancy
// diagnostics (spec §4.9, §7).
var NoLoc = SourceLoc{}

func (loc SourceLoc) IsEmpty() bool {
	return loc.filePath == ""
}

func (loc SourceLoc) EqualsTo(other SourceLoc) bool {
	return loc.filePath == other.filePath && loc.start == other.start && loc.end == other.end
}

func (loc SourceLoc) FilePath() string {
	return loc.filePath
}

func (loc SourceLoc) Start() uint32 { return loc.start }
func (loc SourceLoc) End() uint32   { return loc.end }

func (loc SourceLoc) Text() string {
	if loc.IsEmpty() {
		return ""
	}
	return string(loc.content[loc.start:loc.end])
}

func (loc SourceLoc) CursorString() string {
	if loc.IsEmpty() {
		return ""
	}
	line, col := loc.lineAndColumn()
	return fmt.Sprintf("%s:%d:%d", loc.filePath, line, col)
}

func (loc SourceLoc) lineAndColumn() (line, column int) {
	line, column = 1, 1
	for i := uint32(0); i < uint32(len(loc.content)) && i < loc.start; i++ {
		if loc.content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return
}
