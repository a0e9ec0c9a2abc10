package source

import "fmt"

// Position is a zero-based line/column pair. Columns count bytes of the
// line's UTF-8 text; protocol layers convert at their own boundary.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
}

// Compare orders positions by line, then column.
func (p Position) Compare(other Position) int {
	switch {
	case p.Line < other.Line:
		return -1
	case p.Line > other.Line:
		return 1
	case p.Column < other.Column:
		return -1
	case p.Column > other.Column:
		return 1
	}
	return 0
}

func (p Position) Less(other Position) bool {
	return p.Compare(other) < 0
}

// Range is a half-open region [Start, End).
type Range struct {
	Start Position
	End   Position
}

func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Contains reports whether p lies inside the range. An empty range contains
// its own start so that a bare cursor is still addressable.
func (r Range) Contains(p Position) bool {
	if r.IsEmpty() {
		return p == r.Start
	}
	return r.Start.Compare(p) <= 0 && p.Less(r.End)
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Span is a located expression: its range plus the verbatim source slice.
type Span struct {
	Range Range
	Text  string
}

// TextEdit replaces Range with NewText.
type TextEdit struct {
	Range   Range
	NewText string
}
