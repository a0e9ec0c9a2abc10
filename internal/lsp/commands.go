package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"widgetwrap/internal/edit"
	"widgetwrap/internal/source"
	"widgetwrap/internal/trace"
	"widgetwrap/internal/transform"
	"widgetwrap/internal/wrapper"
)

const (
	cmdWrap                = "widgetwrap.wrap"
	cmdUnwrap              = "widgetwrap.unwrap"
	cmdShowWrapperPicker   = "widgetwrap.showWrapperPicker"
	cmdToggleWrapper       = "widgetwrap.toggleWrapper"
	cmdRefreshOutline      = "widgetwrap.refreshOutline"
	cmdToggleOutlineMode   = "widgetwrap.toggleOutlineMode"
	cmdExpandAll           = "widgetwrap.expandAll"
	cmdCollapseAll         = "widgetwrap.collapseAll"
	cmdRemoveWrapperAtNode = "widgetwrap.removeWrapperAtNode"
	cmdWrapAtNode          = "widgetwrap.wrapAtNode"
)

func commandNames() []string {
	return []string{
		cmdWrap, cmdUnwrap, cmdShowWrapperPicker, cmdToggleWrapper,
		cmdRefreshOutline, cmdToggleOutlineMode, cmdExpandAll, cmdCollapseAll,
		cmdRemoveWrapperAtNode, cmdWrapAtNode,
	}
}

// User facing messages.
const (
	msgNoEditor     = "No active editor"
	msgNoWidget     = "Could not detect a widget at cursor position"
	msgEmptyWidget  = "No widget found to wrap"
	msgWrapFailed   = "Could not wrap the widget"
	msgUnwrapFailed = "Could not remove the widget"
	msgStaleNode    = "The widget is no longer in the outline"
	msgAllDisabled  = "All wrappers are disabled"
	msgSaveFailed   = "Could not save wrapper settings"
	msgPickerPrompt = "Wrap with..."
)

// errInvalidArgs is reported to the client as invalid params.
var errInvalidArgs = errors.New("invalid arguments")

// handleExecuteCommand runs the command off the read loop: commands wait
// for client responses that the loop has to deliver.
func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	ctx := s.ctx()
	s.commands.Add(1)
	go func() {
		defer s.commands.Done()
		result, err := s.executeCommand(ctx, params)
		if len(msg.ID) == 0 {
			return
		}
		var sendErr error
		switch {
		case errors.Is(err, errInvalidArgs), errors.Is(err, wrapper.ErrUnknown):
			sendErr = s.sendError(msg.ID, codeInvalidParams, err.Error())
		case err != nil:
			sendErr = s.sendError(msg.ID, codeInternalError, err.Error())
		default:
			sendErr = s.sendResponse(msg.ID, result)
		}
		if sendErr != nil {
			s.logf("failed to answer %s: %v", params.Command, sendErr)
		}
	}()
	return nil
}

func (s *Server) executeCommand(ctx context.Context, params executeCommandParams) (any, error) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeCommand, params.Command, trace.ParentID(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer span.End("")

	args := params.Arguments
	switch params.Command {
	case cmdWrap:
		var (
			uri, id string
			rng     lspRange
		)
		if err := decodeArgs(args, &uri, &rng, &id); err != nil {
			return nil, err
		}
		return nil, s.wrap(ctx, canonicalURI(uri), rng, id)
	case cmdUnwrap:
		var (
			uri string
			pos position
		)
		if err := decodeArgs(args, &uri, &pos); err != nil {
			return nil, err
		}
		uri = canonicalURI(uri)
		doc := s.document(uri)
		if doc == nil {
			s.showError(msgNoEditor)
			return nil, nil
		}
		return nil, s.unwrap(ctx, uri, doc, toSource(doc, pos))
	case cmdShowWrapperPicker:
		var (
			uri string
			rng lspRange
		)
		if err := decodeArgs(args, &uri, &rng); err != nil {
			return nil, err
		}
		return nil, s.showPicker(ctx, canonicalURI(uri), rng)
	case cmdToggleWrapper:
		var id string
		if err := decodeArgs(args, &id); err != nil {
			return nil, err
		}
		return s.toggleWrapper(ctx, id)
	case cmdRefreshOutline:
		s.rebuildOutline(ctx)
		return nil, nil
	case cmdToggleOutlineMode:
		return map[string]bool{"compact": s.session.ToggleMode()}, nil
	case cmdExpandAll:
		s.session.ExpandAll()
		return nil, nil
	case cmdCollapseAll:
		s.session.CollapseAll()
		return nil, nil
	case cmdRemoveWrapperAtNode:
		var id string
		if err := decodeArgs(args, &id); err != nil {
			return nil, err
		}
		return nil, s.removeWrapperAtNode(ctx, id)
	case cmdWrapAtNode:
		var id string
		if err := decodeArgs(args, &id); err != nil {
			return nil, err
		}
		return nil, s.wrapAtNode(ctx, id)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", errInvalidArgs, params.Command)
	}
}

// decodeArgs decodes positional command arguments. Node ids may also be
// passed as an object with a "nodeId" or "id" field, which is what tree
// views hand to context menu commands.
func decodeArgs(args []json.RawMessage, out ...any) error {
	if len(args) < len(out) {
		return fmt.Errorf("%w: expected %d, got %d", errInvalidArgs, len(out), len(args))
	}
	for i, dst := range out {
		err := json.Unmarshal(args[i], dst)
		if err == nil {
			continue
		}
		if str, ok := dst.(*string); ok {
			var node struct {
				NodeID string `json:"nodeId"`
				ID     string `json:"id"`
			}
			if json.Unmarshal(args[i], &node) == nil && (node.NodeID != "" || node.ID != "") {
				*str = node.NodeID
				if *str == "" {
					*str = node.ID
				}
				continue
			}
		}
		return fmt.Errorf("%w: argument %d: %v", errInvalidArgs, i, err)
	}
	return nil
}

func (s *Server) wrap(ctx context.Context, uri string, rng lspRange, id string) error {
	tmpl, ok := s.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", wrapper.ErrUnknown, id)
	}
	doc := s.document(uri)
	if doc == nil {
		s.showError(msgNoEditor)
		return nil
	}
	res, err := transform.WrapAt(ctx, doc, toSourceRange(doc, rng), tmpl, s.locator)
	switch {
	case errors.Is(err, transform.ErrNotFound):
		s.showError(msgNoWidget)
		return nil
	case errors.Is(err, transform.ErrInvalidInput):
		s.showError(msgEmptyWidget)
		return nil
	case err != nil:
		s.logf("wrap: %v", err)
		s.showError(msgWrapFailed)
		return nil
	}
	applied, err := s.applyEdits(ctx, uri, tmpl.DisplayName(), doc, res.Edit)
	if err != nil || !applied {
		if err != nil {
			s.logf("wrap: %v", err)
		}
		s.showError(msgWrapFailed)
		return nil
	}
	s.showInfo("Wrapped with " + tmpl.Title)
	s.formatAfter(ctx, uri, doc, res.Edit)
	return nil
}

func (s *Server) unwrap(ctx context.Context, uri string, doc *source.Document, pos source.Position) error {
	res, err := transform.UnwrapAt(ctx, doc, pos, s.locator)
	if errors.Is(err, transform.ErrNotFound) {
		s.showError(msgNoWidget)
		return nil
	}
	if err != nil {
		s.logf("unwrap: %v", err)
		s.showError(msgUnwrapFailed)
		return nil
	}
	applied, err := s.applyEdits(ctx, uri, "Remove "+res.Name, doc, res.Edit)
	if err != nil || !applied {
		if err != nil {
			s.logf("unwrap: %v", err)
		}
		s.showError(msgUnwrapFailed)
		return nil
	}
	if res.Deleted {
		s.showInfo("Removed " + res.Name)
	} else {
		s.showInfo("Removed " + res.Name + " wrapper")
	}
	s.formatAfter(ctx, uri, doc, res.Edit)
	return nil
}

// formatAfter formats the edited text and sends the result as a second
// edit. Failures are cosmetic and only logged.
func (s *Server) formatAfter(ctx context.Context, uri string, doc *source.Document, edits ...source.TextEdit) {
	if s.formatter == nil {
		return
	}
	text, err := edit.Apply(doc, edits)
	if err != nil {
		s.logf("format: %v", err)
		return
	}
	formatted, err := s.formatter.Format(ctx, doc.Path, text)
	if err != nil {
		s.logf("format: %v", err)
		return
	}
	if formatted == text {
		return
	}
	edited := source.NewDocument(doc.Path, doc.LanguageID, text)
	applied, err := s.applyEdits(ctx, uri, "Format document", edited, edit.WholeDocument(edited, formatted))
	if err != nil || !applied {
		s.logf("format: edit not applied: %v", err)
	}
}

func (s *Server) showPicker(ctx context.Context, uri string, rng lspRange) error {
	if s.document(uri) == nil {
		s.showError(msgNoEditor)
		return nil
	}
	enabled := s.registry.Enabled()
	if len(enabled) == 0 {
		s.showInfo(msgAllDisabled)
		return nil
	}
	titles := make([]string, len(enabled))
	for i, t := range enabled {
		titles[i] = t.DisplayName()
	}
	chosen, err := s.pick(ctx, msgPickerPrompt, titles)
	if err != nil {
		s.logf("picker: %v", err)
		return nil
	}
	for _, t := range enabled {
		if t.DisplayName() == chosen {
			return s.wrap(ctx, uri, rng, t.ID)
		}
	}
	return nil
}

func (s *Server) toggleWrapper(ctx context.Context, id string) (any, error) {
	on, err := s.registry.Toggle(ctx, id)
	if errors.Is(err, wrapper.ErrUnknown) {
		return nil, err
	}
	if err != nil {
		s.logf("toggle %s: %v", id, err)
		s.showError(msgSaveFailed)
		return nil, nil
	}
	if err := s.notify(methodWrappersChanged, map[string]any{"id": id, "enabled": on}); err != nil {
		s.logf("failed to notify wrapper change: %v", err)
	}
	return map[string]any{"id": id, "enabled": on}, nil
}

func (s *Server) removeWrapperAtNode(ctx context.Context, id string) error {
	uri := s.active()
	n, ok := s.session.Node(id)
	doc := s.document(uri)
	if !ok || doc == nil {
		s.showError(msgStaleNode)
		return nil
	}
	return s.unwrap(ctx, uri, doc, source.Position{Line: n.Line, Column: n.Column})
}

// wrapAtNode moves the client's cursor to the node and opens the picker
// for the expression there.
func (s *Server) wrapAtNode(ctx context.Context, id string) error {
	uri := s.active()
	n, ok := s.session.Node(id)
	doc := s.document(uri)
	if !ok || doc == nil {
		s.showError(msgStaleNode)
		return nil
	}
	pos := fromSource(doc, source.Position{Line: n.Line, Column: n.Column})
	rng := lspRange{Start: pos, End: pos}
	var shown struct {
		Success bool `json:"success"`
	}
	err := s.request(ctx, "window/showDocument", showDocumentParams{URI: uri, TakeFocus: true, Selection: &rng}, &shown)
	if err != nil {
		s.logf("showDocument: %v", err)
	}
	return s.showPicker(ctx, uri, rng)
}
