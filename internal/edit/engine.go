// Package edit applies text edits to documents and files. It is the edit
// primitive used by the CLI; the language server sends the same edits to
// the client instead.
package edit

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"widgetwrap/internal/source"
)

var (
	// ErrConflict is returned when two edits overlap.
	ErrConflict = errors.New("overlapping edits")
	// ErrOutOfRange is returned when an edit addresses text outside the document.
	ErrOutOfRange = errors.New("edit span out of range")
)

type span struct {
	start, end int
	text       string
	order      int
}

// Apply returns doc's text with edits applied. Either every edit applies or
// none does.
func Apply(doc *source.Document, edits []source.TextEdit) (string, error) {
	spans := make([]span, 0, len(edits))
	for i, e := range edits {
		if e.Range.End.Less(e.Range.Start) {
			return "", fmt.Errorf("%w: %v", ErrOutOfRange, e.Range)
		}
		if e.Range.Start.Line >= doc.LineCount() || e.Range.End.Line >= doc.LineCount() {
			return "", fmt.Errorf("%w: %v", ErrOutOfRange, e.Range)
		}
		spans = append(spans, span{
			start: doc.Offset(e.Range.Start),
			end:   doc.Offset(e.Range.End),
			text:  e.NewText,
			order: i,
		})
	}

	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].order < spans[j].order
	})
	for i := 1; i < len(spans); i++ {
		if spansConflict(spans[i-1], spans[i]) {
			return "", fmt.Errorf("%w at offset %d", ErrConflict, spans[i].start)
		}
	}

	// спаны отсортированы и не пересекаются, собираем результат за один проход
	var sb strings.Builder
	sb.Grow(len(doc.Text))
	prev := 0
	for _, s := range spans {
		sb.WriteString(doc.Text[prev:s.start])
		sb.WriteString(s.text)
		prev = s.end
	}
	sb.WriteString(doc.Text[prev:])
	return sb.String(), nil
}

// spansConflict treats spans as half-open; two insertions at the same
// offset are allowed and keep their request order.
func spansConflict(a, b span) bool {
	if a.start == a.end && b.start == b.end {
		return false
	}
	return b.start < a.end
}

// WriteFile replaces path's content, keeping its mode.
func WriteFile(path, text string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(text), mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WholeDocument returns an edit that replaces all of doc with text.
func WholeDocument(doc *source.Document, text string) source.TextEdit {
	return source.TextEdit{
		Range:   doc.RangeOf(0, len(doc.Text)),
		NewText: text,
	}
}
