package lsp

import (
	"encoding/json"

	"widgetwrap/internal/outline"
	"widgetwrap/internal/scan"
	"widgetwrap/internal/source"
)

func (s *Server) handleDocumentSymbol(msg *rpcMessage) error {
	var params documentSymbolParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	doc := s.document(canonicalURI(params.TextDocument.URI))
	if doc == nil || doc.LanguageID != source.LanguageDart {
		return s.sendResponse(msg.ID, []documentSymbol{})
	}
	roots, err := s.builder.Build(s.ctx(), doc.Text, doc.Path)
	if err != nil {
		s.logf("documentSymbol: %v", err)
		return s.sendResponse(msg.ID, []documentSymbol{})
	}
	return s.sendResponse(msg.ID, symbolsFor(doc, roots))
}

func symbolsFor(doc *source.Document, nodes []*outline.Node) []documentSymbol {
	out := make([]documentSymbol, 0, len(nodes))
	for _, n := range nodes {
		nameEnd := n.Offset + len(n.Name)
		end := callEnd(doc.Text, nameEnd)
		out = append(out, documentSymbol{
			Name:           n.Name,
			Detail:         outline.Props(n),
			Kind:           symbolKindClass,
			Range:          rangeFor(doc, doc.RangeOf(n.Offset, end)),
			SelectionRange: rangeFor(doc, doc.RangeOf(n.Offset, nameEnd)),
			Children:       symbolsFor(doc, n.Children),
		})
	}
	return out
}

// callEnd returns the offset after the argument list that follows a
// widget name, or nameEnd when the call does not close.
func callEnd(text string, nameEnd int) int {
	i := nameEnd
	for i < len(text) && (text[i] == ' ' || text[i] == '\t' || text[i] == '\n') {
		i++
	}
	if i >= len(text) || text[i] != '(' {
		return nameEnd
	}
	if end, ok := scan.MatchClose(text, i, scan.Parens); ok {
		return end + 1
	}
	return nameEnd
}
