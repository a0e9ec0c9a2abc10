package scan

// Stop is the outcome of a top-level walk.
type Stop int

const (
	// StopEOF means the text ended before any stop condition.
	StopEOF Stop = iota
	// StopByte means one of the requested bytes was found at depth 0.
	StopByte
	// StopUnmatched means a closing delimiter took depth below zero.
	StopUnmatched
)

// FirstTopLevel walks text from start tracking (), [] and {} together and
// returns the first index holding one of stops at depth 0, or the index of
// a close delimiter that has no opener inside the walked region.
func FirstTopLevel(text string, start int, stops string) (int, Stop) {
	depth := 0
	for i := start; i < len(text); {
		if j := SkipOpaque(text, i); j > i {
			i = j
			continue
		}
		c := text[i]
		switch c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth == 0 {
				if containsByte(stops, c) {
					return i, StopByte
				}
				return i, StopUnmatched
			}
			depth--
		default:
			if depth == 0 && containsByte(stops, c) {
				return i, StopByte
			}
		}
		i++
	}
	return len(text), StopEOF
}

// SplitTopLevel splits text at commas that sit at depth 0. Empty trailing
// segments (a trailing comma) are dropped.
func SplitTopLevel(text string) []string {
	var parts []string
	for start := 0; start <= len(text); {
		end, stop := FirstTopLevel(text, start, ",")
		parts = append(parts, text[start:end])
		if stop != StopByte {
			break
		}
		start = end + 1
	}
	for len(parts) > 0 && isBlank(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	return parts
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
