package ast

import "fmt"

// Location is a 1-based, inclusive source range: file path plus start/end
// line and column. Invariant: Start must not be lexicographically greater
// than End in (line, column) order — callers constructing a Location are
// responsible for this; the core treats a violation as an internal error
// (spec §7: "Invariant violations ... treated as bugs").
type Location struct {
	File        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Valid reports whether Start <= End in lexicographic line/column order.
func (l Location) Valid() bool {
	if l.StartLine != l.EndLine {
		return l.StartLine <= l.EndLine
	}
	return l.StartColumn <= l.EndColumn
}

// String renders a Location as "file:startLine:startCol-endLine:endCol".
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", l.File, l.StartLine, l.StartColumn, l.EndLine, l.EndColumn)
}

// Union returns the smallest Location enclosing both l and other, used by
// the rule engine's focus-metavariable selection (spec §4.4 step 4:
// "the union (bounding rectangle) of the locations ... for those
// metavariables").
func (l Location) Union(other Location) Location {
	result := l
	if other.File != "" {
		result.File = other.File
	}
	if before(other.StartLine, other.StartColumn, result.StartLine, result.StartColumn) {
		result.StartLine, result.StartColumn = other.StartLine, other.StartColumn
	}
	if before(result.EndLine, result.EndColumn, other.EndLine, other.EndColumn) {
		result.EndLine, result.EndColumn = other.EndLine, other.EndColumn
	}
	return result
}

func before(line1, col1, line2, col2 int) bool {
	if line1 != line2 {
		return line1 < line2
	}
	return col1 < col2
}
