package lsp

import (
	"context"
	"encoding/json"
	"time"

	"widgetwrap/internal/outline"
	"widgetwrap/internal/source"
)

const (
	methodOutlineChildren = "widgetwrap/outlineChildren"
	methodOutlineParent   = "widgetwrap/outlineParent"
	methodSetExpanded     = "widgetwrap/setExpanded"
	methodWrappers        = "widgetwrap/wrappers"
	methodCursorMoved     = "widgetwrap/cursorMoved"
	methodRevealNode      = "widgetwrap/revealNode"
	methodOutlineChanged  = "widgetwrap/outlineChanged"
	methodWrappersChanged = "widgetwrap/wrappersChanged"
)

// touch makes uri the outline document and schedules a rebuild. Only Dart
// documents drive the outline.
func (s *Server) touch(uri string) {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok || doc.languageID != source.LanguageDart {
		s.mu.Unlock()
		return
	}
	s.activeURI = uri
	s.mu.Unlock()
	s.scheduleRebuild()
}

func (s *Server) scheduleRebuild() {
	s.mu.Lock()
	seq := s.rebuildSeq.Add(1)
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.debounce, func() {
		s.runRebuild(seq)
	})
	s.mu.Unlock()
}

func (s *Server) runRebuild(seq uint64) {
	if seq != s.rebuildSeq.Load() {
		return
	}
	s.rebuildOutline(s.ctx())
}

// rebuildOutline rescans the active document now.
func (s *Server) rebuildOutline(ctx context.Context) {
	uri := s.active()
	doc := s.document(uri)
	if doc == nil {
		s.session.Reset()
		return
	}
	if err := s.session.Rebuild(ctx, doc); err != nil {
		s.logf("outline: %s: %v", uri, err)
	}
}

// activate switches the outline to uri when the client asks for a tree of
// a document other than the one last edited.
func (s *Server) activate(ctx context.Context, uri string) {
	uri = canonicalURI(uri)
	if uri == "" {
		return
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	switchDoc := ok && doc.languageID == source.LanguageDart && uri != s.activeURI
	if switchDoc {
		s.activeURI = uri
	}
	s.mu.Unlock()
	if switchDoc {
		s.rebuildOutline(ctx)
	}
}

func (s *Server) outlineChanged() {
	err := s.notify(methodOutlineChanged, outlineChangedParams{
		URI:     s.active(),
		Compact: s.session.Compact(),
	})
	if err != nil {
		s.logf("failed to notify outline change: %v", err)
	}
}

// itemFor converts a rendered node for the wire. doc resolves byte columns
// to UTF-16; it may be nil for message items.
func itemFor(doc *source.Document, item outline.Item) outlineItem {
	out := outlineItem{
		ID:          item.ID,
		Label:       item.Label,
		Description: item.Description,
		Tooltip:     item.Tooltip,
		Icon:        item.Icon,
		State:       item.State.String(),
		Message:     item.Message,
	}
	if doc != nil && !item.Message {
		start := source.Position{Line: item.Line, Column: item.Column}
		end := source.Position{Line: item.Line, Column: item.Column + len(item.Name)}
		out.Range = rangeFor(doc, source.Range{Start: start, End: end})
	}
	return out
}

func (s *Server) handleOutlineChildren(msg *rpcMessage) error {
	var params outlineChildrenParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	if params.URI != "" {
		s.activate(s.ctx(), params.URI)
	}
	doc := s.document(s.active())
	items := s.session.Items(params.ParentID)
	out := make([]outlineItem, len(items))
	for i, item := range items {
		out[i] = itemFor(doc, item)
	}
	return s.sendResponse(msg.ID, out)
}

func (s *Server) handleOutlineParent(msg *rpcMessage) error {
	var params nodeParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	parent := s.session.Parent(params.NodeID)
	if parent == nil {
		return s.sendResponse(msg.ID, nil)
	}
	return s.sendResponse(msg.ID, itemFor(s.document(s.active()), s.session.Item(parent)))
}

func (s *Server) handleSetExpanded(msg *rpcMessage) error {
	var params setExpandedParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	s.session.SetExpanded(params.NodeID, params.Expanded)
	if len(msg.ID) == 0 {
		return nil
	}
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleCursorMoved(msg *rpcMessage) error {
	var params cursorMovedParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("cursorMoved: %v", err)
		return nil
	}
	uri := canonicalURI(params.URI)
	if uri == "" || uri != s.active() {
		return nil
	}
	s.syncer.CursorMoved(uriToPath(uri), clampIndex(params.Position.Line))
	return nil
}

// revealNode asks the client to select n, listing the ancestors it has to
// expand first.
func (s *Server) revealNode(_ context.Context, n *outline.Node) error {
	uri := s.active()
	var ancestors []string
	for p := s.session.Parent(n.ID); p != nil; p = s.session.Parent(p.ID) {
		ancestors = append([]string{p.ID}, ancestors...)
	}
	return s.notify(methodRevealNode, revealNodeParams{
		URI:       uri,
		Node:      itemFor(s.document(uri), s.session.Item(n)),
		Ancestors: ancestors,
	})
}
