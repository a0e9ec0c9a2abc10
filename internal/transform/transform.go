// Package transform wraps a widget expression in a template and unwraps a
// wrapper back to its child.
package transform

import (
	"errors"
	"strings"

	"widgetwrap/internal/scan"
	"widgetwrap/internal/source"
	"widgetwrap/internal/wrapper"
)

var (
	// ErrNotFound covers a missing expression or a missing child marker.
	ErrNotFound = errors.New("widget not found")
	// ErrInvalidInput covers empty selections and incomplete requests.
	ErrInvalidInput = errors.New("invalid input")
)

// DiscardedSiblingsComment is appended to the first child when a
// multi-child wrapper is removed.
const DiscardedSiblingsComment = " /* other children were removed */"

// IndentationOf returns the leading whitespace of the first line of text.
func IndentationOf(text string) string {
	end := 0
	for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
		end++
	}
	return text[:end]
}

// Wrap renders tmpl around child. The child is inserted verbatim.
func Wrap(child string, tmpl *wrapper.Template) (string, error) {
	return tmpl.Render(child, IndentationOf(child))
}

// ExpressionName returns the leading identifier of expr, including a named
// constructor suffix such as GridView.count.
func ExpressionName(expr string) string {
	expr = strings.TrimLeft(expr, " \t\n")
	end := 0
	for end < len(expr) && (source.IsIdentByte(expr[end]) || expr[end] == '.' && end > 0) {
		end++
	}
	return strings.TrimRight(expr[:end], ".")
}

// Unwrap extracts the child of a wrapper expression. The second result is
// false when no child could be extracted.
func Unwrap(expr, name string) (string, bool) {
	if wrapper.IsMultiChild(name) {
		return unwrapMulti(expr)
	}
	return unwrapSingle(expr)
}

func unwrapSingle(expr string) (string, bool) {
	marker := strings.Index(expr, "child:")
	if marker < 0 {
		return "", false
	}
	start := skipSpace(expr, marker+len("child:"))
	end, _ := scan.FirstTopLevel(expr, start, ",}")
	if end <= start {
		return "", false
	}
	return strings.TrimRight(expr[start:end], " \t\n"), true
}

func unwrapMulti(expr string) (string, bool) {
	marker := strings.Index(expr, "children:")
	if marker < 0 {
		return "", false
	}
	open := strings.IndexByte(expr[marker:], '[')
	if open < 0 {
		return "", false
	}
	open += marker
	closeIdx, ok := scan.MatchClose(expr, open, scan.Brackets)
	if !ok {
		closeIdx = len(expr)
	}
	content := expr[open+1 : closeIdx]
	elems := scan.SplitTopLevel(content)
	if len(elems) == 0 {
		return "", false
	}
	first := strings.TrimSpace(elems[0])
	if first == "" {
		return "", false
	}
	return first + DiscardedSiblingsComment, true
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
