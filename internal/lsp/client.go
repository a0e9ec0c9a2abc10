package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"widgetwrap/internal/source"
)

// errConnectionClosed fails requests still waiting when the server stops.
var errConnectionClosed = errors.New("connection closed")

// request sends a server to client request and waits for its response.
// Responses are routed back by Run, so request must not be called from the
// read loop itself.
func (s *Server) request(ctx context.Context, method string, params, result any) error {
	id := s.nextID.Add(1)
	key := strconv.FormatInt(id, 10)
	ch := make(chan *rpcMessage, 1)

	s.pendingMu.Lock()
	if s.closed {
		s.pendingMu.Unlock()
		return errConnectionClosed
	}
	s.pending[key] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, key)
		s.pendingMu.Unlock()
	}()

	err := s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return errConnectionClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 || bytes.Equal(resp.Result, []byte("null")) {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

func (s *Server) deliver(msg *rpcMessage) {
	key := string(bytes.Trim(bytes.TrimSpace(msg.ID), `"`))
	s.pendingMu.Lock()
	ch, ok := s.pending[key]
	s.pendingMu.Unlock()
	if !ok {
		s.logf("response for unknown request %s", key)
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

func (s *Server) closePending() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for key, ch := range s.pending {
		close(ch)
		delete(s.pending, key)
	}
}

func (s *Server) showMessage(kind int, text string) {
	if err := s.notify("window/showMessage", showMessageParams{Type: kind, Message: text}); err != nil {
		s.logf("failed to show message: %v", err)
	}
}

func (s *Server) showInfo(text string)  { s.showMessage(messageInfo, text) }
func (s *Server) showError(text string) { s.showMessage(messageError, text) }

// applyEdits asks the client to apply edits to uri. doc is the snapshot
// the edits were computed against.
func (s *Server) applyEdits(ctx context.Context, uri, label string, doc *source.Document, edits ...source.TextEdit) (bool, error) {
	out := make([]textEdit, len(edits))
	for i, e := range edits {
		out[i] = textEditFor(doc, e)
	}
	var res applyWorkspaceEditResult
	err := s.request(ctx, "workspace/applyEdit", applyWorkspaceEditParams{
		Label: label,
		Edit:  workspaceEdit{Changes: map[string][]textEdit{uri: out}},
	}, &res)
	if err != nil {
		return false, err
	}
	if !res.Applied && res.FailureReason != "" {
		s.logf("applyEdit rejected: %s", res.FailureReason)
	}
	return res.Applied, nil
}

// pick shows a choice to the user and returns the chosen title. A
// dismissed prompt returns "" and no error.
func (s *Server) pick(ctx context.Context, prompt string, titles []string) (string, error) {
	actions := make([]messageActionItem, len(titles))
	for i, t := range titles {
		actions[i] = messageActionItem{Title: t}
	}
	var chosen *messageActionItem
	err := s.request(ctx, "window/showMessageRequest", showMessageRequestParams{
		Type:    messageInfo,
		Message: prompt,
		Actions: actions,
	}, &chosen)
	if err != nil || chosen == nil {
		return "", err
	}
	return chosen.Title, nil
}
