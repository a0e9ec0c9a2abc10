package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Flags records normalisations applied while loading a document.
type Flags uint8

const (
	// HadBOM is set when a UTF-8 byte order mark was stripped.
	HadBOM Flags = 1 << iota
	// NormalizedCRLF is set when \r\n sequences were rewritten to \n.
	NormalizedCRLF
)

// LanguageDart is the language id of Flutter sources.
const LanguageDart = "dart"

// Document is an immutable snapshot of a text buffer.
type Document struct {
	Path       string
	LanguageID string
	Text       string
	Flags      Flags

	lineStarts []int
}

// NewDocument snapshots text. The line index is built eagerly.
func NewDocument(path, languageID, text string) *Document {
	return &Document{
		Path:       path,
		LanguageID: languageID,
		Text:       text,
		lineStarts: buildLineStarts(text),
	}
}

// Load reads a document from disk, normalising BOM and line endings.
func Load(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var flags Flags
	content, bom := removeBOM(content)
	if bom {
		flags |= HadBOM
	}
	content, crlf := normalizeCRLF(content)
	if crlf {
		flags |= NormalizedCRLF
	}
	doc := NewDocument(normalizePath(path), LanguageFor(path), string(content))
	doc.Flags = flags
	return doc, nil
}

// LanguageFor maps a file extension to a language id.
func LanguageFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".dart":
		return LanguageDart
	case "":
		return "plaintext"
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
}

func (d *Document) LineCount() int {
	return len(d.lineStarts)
}

// LineStart returns the byte offset of the first byte of line n.
func (d *Document) LineStart(n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(d.lineStarts) {
		return len(d.Text)
	}
	return d.lineStarts[n]
}

// Line returns the text of line n without its terminator.
func (d *Document) Line(n int) string {
	if n < 0 || n >= len(d.lineStarts) {
		return ""
	}
	start := d.lineStarts[n]
	end := len(d.Text)
	if n+1 < len(d.lineStarts) {
		end = d.lineStarts[n+1] - 1
	}
	return d.Text[start:end]
}

// Offset converts a position to a byte offset, clamping to the document.
func (d *Document) Offset(p Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(d.lineStarts) {
		return len(d.Text)
	}
	line := d.Line(p.Line)
	col := max(0, min(p.Column, len(line)))
	return d.lineStarts[p.Line] + col
}

// PositionAt converts a byte offset to a position.
func (d *Document) PositionAt(off int) Position {
	off = max(0, min(off, len(d.Text)))
	// наибольший lineStarts[i] <= off
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > off
	}) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Column: off - d.lineStarts[line]}
}

// Slice returns the text covered by r.
func (d *Document) Slice(r Range) string {
	start, end := d.Offset(r.Start), d.Offset(r.End)
	if end < start {
		return ""
	}
	return d.Text[start:end]
}

// RangeOf converts a byte interval to a range.
func (d *Document) RangeOf(start, end int) Range {
	return Range{Start: d.PositionAt(start), End: d.PositionAt(end)}
}

// WordRangeAt returns the identifier under p. A cursor placed just after the
// last character of an identifier still resolves to it.
func (d *Document) WordRangeAt(p Position) (Range, bool) {
	line := d.Line(p.Line)
	col := max(0, min(p.Column, len(line)))
	start, end := col, col
	for start > 0 && IsIdentByte(line[start-1]) {
		start--
	}
	for end < len(line) && IsIdentByte(line[end]) {
		end++
	}
	if start == end {
		return Range{}, false
	}
	return Range{
		Start: Position{Line: p.Line, Column: start},
		End:   Position{Line: p.Line, Column: end},
	}, true
}
