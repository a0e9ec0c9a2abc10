package lsp

import (
	"fortio.org/safecast"

	"widgetwrap/internal/source"
)

// clampIndex keeps client supplied indices inside the uinteger range of
// the protocol.
func clampIndex(n int) int {
	if _, err := safecast.Conv[uint32](n); err != nil {
		if n < 0 {
			return 0
		}
		return int(^uint32(0))
	}
	return n
}

// toSource converts a protocol position to a byte based document position.
func toSource(doc *source.Document, p position) source.Position {
	line := clampIndex(p.Line)
	if line >= doc.LineCount() {
		return doc.PositionAt(len(doc.Text))
	}
	return source.Position{Line: line, Column: byteColumn(doc.Line(line), clampIndex(p.Character))}
}

func toSourceRange(doc *source.Document, r lspRange) source.Range {
	return source.Range{Start: toSource(doc, r.Start), End: toSource(doc, r.End)}
}

func fromSource(doc *source.Document, p source.Position) position {
	if p.Line >= doc.LineCount() {
		p = doc.PositionAt(len(doc.Text))
	}
	return position{Line: p.Line, Character: utf16Column(doc.Line(p.Line), p.Column)}
}

func rangeFor(doc *source.Document, r source.Range) lspRange {
	return lspRange{Start: fromSource(doc, r.Start), End: fromSource(doc, r.End)}
}

func textEditFor(doc *source.Document, e source.TextEdit) textEdit {
	return textEdit{Range: rangeFor(doc, e.Range), NewText: e.NewText}
}

// documentVersion narrows a client version to the protocol integer type.
func documentVersion(v int) int32 {
	n, err := safecast.Conv[int32](v)
	if err != nil {
		return 0
	}
	return n
}
