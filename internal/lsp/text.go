package lsp

import (
	"strings"
	"unicode/utf8"
)

func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := offsetForPosition(text, change.Range.End)
		if end < start {
			end = start
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition converts a UTF-16 based position to a byte offset in
// text, clamping to the line and to the text.
func offsetForPosition(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	i := 0
	for line := 0; line < pos.Line; line++ {
		nl := strings.IndexByte(text[i:], '\n')
		if nl < 0 {
			return len(text)
		}
		i += nl + 1
	}
	return i + byteColumn(lineAt(text, i), pos.Character)
}

func lineAt(text string, start int) string {
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		return text[start : start+nl]
	}
	return text[start:]
}

// byteColumn returns the byte index in line reached after units UTF-16 code
// units. A position inside a surrogate pair rounds down.
func byteColumn(line string, units int) int {
	n := 0
	for i, r := range line {
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if n+need > units {
			return i
		}
		n += need
	}
	return len(line)
}

// utf16Column counts UTF-16 code units in line[:col].
func utf16Column(line string, col int) int {
	col = max(0, min(col, len(line)))
	units := 0
	for off := 0; off < col; {
		r, size := utf8.DecodeRuneInString(line[off:col])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += size
	}
	return units
}
