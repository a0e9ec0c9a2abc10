package scan

import "strings"

// SkipOpaque returns the index just past the string literal or comment that
// starts at i, or i itself when nothing opaque starts there. Unterminated
// single-line strings stop at the end of the line; unterminated block
// comments and triple-quoted strings run to the end of text.
func SkipOpaque(text string, i int) int {
	if i >= len(text) {
		return i
	}
	switch c := text[i]; c {
	case '/':
		if i+1 < len(text) {
			switch text[i+1] {
			case '/':
				if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
					return i + nl
				}
				return len(text)
			case '*':
				if end := strings.Index(text[i+2:], "*/"); end >= 0 {
					return i + 2 + end + 2
				}
				return len(text)
			}
		}
	case '\'', '"':
		raw := i > 0 && text[i-1] == 'r' && (i < 2 || !isIdent(text[i-2]))
		return skipString(text, i, raw)
	}
	return i
}

func skipString(text string, i int, raw bool) int {
	q := text[i]
	if triple := string([]byte{q, q, q}); strings.HasPrefix(text[i:], triple) {
		for j := i + 3; j < len(text); j++ {
			if text[j] == '\\' && !raw {
				j++
				continue
			}
			if strings.HasPrefix(text[j:], triple) {
				return j + 3
			}
		}
		return len(text)
	}
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			if !raw {
				j++
			}
		case '\n':
			return j
		case q:
			return j + 1
		}
	}
	return len(text)
}

func isIdent(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// Opaque reports, for every byte of text, whether it lies inside a string
// literal or comment. Quote characters and comment markers count as inside.
func Opaque(text string) []bool {
	out := make([]bool, len(text))
	for i := 0; i < len(text); {
		j := SkipOpaque(text, i)
		if j == i {
			i++
			continue
		}
		for k := i; k < j; k++ {
			out[k] = true
		}
		i = j
	}
	return out
}
