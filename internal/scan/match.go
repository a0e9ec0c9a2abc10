// Package scan is the delimiter scanner shared by the locator, the
// transformer and the outline builder. It treats string literals and
// comments as opaque, so delimiters inside them never affect depth.
package scan

import (
	"errors"

	"widgetwrap/internal/source"
)

// MaxLines bounds how far past the opening line a match is searched for.
const MaxLines = 100

// ErrNotFound is returned when no matching delimiter exists within bounds.
var ErrNotFound = errors.New("matching delimiter not found")

// Pair is an open/close delimiter pair.
type Pair struct {
	Open  byte
	Close byte
}

var (
	Parens   = Pair{Open: '(', Close: ')'}
	Brackets = Pair{Open: '[', Close: ']'}
	Braces   = Pair{Open: '{', Close: '}'}
)

// PairFor returns the pair whose opening delimiter is b.
func PairFor(b byte) (Pair, bool) {
	switch b {
	case '(':
		return Parens, true
	case '[':
		return Brackets, true
	case '{':
		return Braces, true
	}
	return Pair{}, false
}

// MatchClose finds the delimiter closing the one at open. Depth starts at 1
// right after open. The caller guarantees text[open] is pair.Open.
// The match must lie at most MaxLines lines after the opening one.
func MatchClose(text string, open int, pair Pair) (int, bool) {
	depth, lines := 1, 0
	for i := open + 1; i < len(text); {
		if j := SkipOpaque(text, i); j > i {
			for k := i; k < j; k++ {
				if text[k] == '\n' {
					lines++
				}
			}
			if lines > MaxLines {
				return -1, false
			}
			i = j
			continue
		}
		switch text[i] {
		case pair.Open:
			depth++
		case pair.Close:
			depth--
			if depth == 0 {
				return i, true
			}
		case '\n':
			lines++
			if lines > MaxLines {
				return -1, false
			}
		}
		i++
	}
	return -1, false
}

// FindMatchingClose is MatchClose over a document. The returned position is
// that of the closing delimiter itself.
func FindMatchingClose(doc *source.Document, open source.Position, pair Pair) (source.Position, error) {
	off := doc.Offset(open)
	closeOff, ok := MatchClose(doc.Text, off, pair)
	if !ok {
		return source.Position{}, ErrNotFound
	}
	return doc.PositionAt(closeOff), nil
}
