package lsp

import (
	"encoding/json"
	"strings"

	"widgetwrap/internal/source"
	"widgetwrap/internal/transform"
)

const codeActionKind = "refactor.rewrite"

func (s *Server) handleCodeAction(msg *rpcMessage) error {
	var params codeActionParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)
	doc := s.document(uri)
	if doc == nil || doc.LanguageID != source.LanguageDart {
		return s.sendResponse(msg.ID, []codeAction{})
	}
	return s.sendResponse(msg.ID, s.codeActions(uri, doc, params.Range))
}

func (s *Server) codeActions(uri string, doc *source.Document, rng lspRange) []codeAction {
	actions := []codeAction{{
		Title:   msgPickerPrompt,
		Kind:    codeActionKind,
		Command: &command{Title: msgPickerPrompt, Command: cmdShowWrapperPicker, Arguments: []any{uri, rng}},
	}}

	sel := toSourceRange(doc, rng)
	var (
		match  bool
		unwrap bool
		name   string
	)
	if sel.IsEmpty() {
		if m, err := s.locator.Find(s.ctx(), doc, sel.Start); err == nil {
			match = true
			name = transform.ExpressionName(m.Text)
			_, unwrap = transform.Unwrap(m.Text, name)
		}
	} else {
		match = strings.TrimSpace(doc.Slice(sel)) != ""
	}
	if !match {
		return actions
	}
	for _, t := range s.registry.Enabled() {
		actions = append(actions, codeAction{
			Title:   t.DisplayName(),
			Kind:    codeActionKind,
			Command: &command{Title: t.DisplayName(), Command: cmdWrap, Arguments: []any{uri, rng, t.ID}},
		})
	}
	if unwrap {
		title := "Remove this widget"
		actions = append(actions, codeAction{
			Title:   title,
			Kind:    codeActionKind,
			Command: &command{Title: title, Command: cmdUnwrap, Arguments: []any{uri, rng.Start}},
		})
	}
	return actions
}
