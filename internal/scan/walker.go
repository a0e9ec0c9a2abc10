package scan

// Walker reports delimiter depth at increasing offsets of one text. All
// three delimiter kinds count toward the same depth; stray closers never
// take it below zero.
type Walker struct {
	text        string
	pos         int
	depth       int
	opaqueStart int
	opaqueEnd   int
}

func NewWalker(text string) *Walker {
	return &Walker{text: text}
}

// Advance moves the walker to off and returns the depth in effect at off
// and whether off lies inside a string literal or comment. Offsets must not
// decrease between calls.
func (w *Walker) Advance(off int) (depth int, opaque bool) {
	for w.pos < off && w.pos < len(w.text) {
		if j := SkipOpaque(w.text, w.pos); j > w.pos {
			w.opaqueStart, w.opaqueEnd = w.pos, j
			w.pos = j
			continue
		}
		switch w.text[w.pos] {
		case '(', '[', '{':
			w.depth++
		case ')', ']', '}':
			if w.depth > 0 {
				w.depth--
			}
		}
		w.pos++
	}
	opaque = off >= w.opaqueStart && off < w.opaqueEnd
	if !opaque && off == w.pos && SkipOpaque(w.text, off) > off {
		opaque = true
	}
	return w.depth, opaque
}
