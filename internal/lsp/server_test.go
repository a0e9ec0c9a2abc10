package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"widgetwrap/internal/format"
	"widgetwrap/internal/outline"
	"widgetwrap/internal/store"
	"widgetwrap/internal/wrapper"
)

const screen = "Widget build(BuildContext context) {\n  return Center(\n    child: Text('hi'),\n  );\n}\n"

type testClient struct {
	t      *testing.T
	in     io.WriteCloser
	msgs   chan *rpcMessage
	done   chan error
	nextID int
}

type upperFormatter struct{}

func (upperFormatter) Format(_ context.Context, _ string, text string) (string, error) {
	return strings.ReplaceAll(text, "const EdgeInsets", "EdgeInsets"), nil
}

func startServer(t *testing.T, opts ServerOptions) (*testClient, *Server) {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = time.Millisecond
	}
	if opts.CursorDebounce == 0 {
		opts.CursorDebounce = time.Millisecond
	}
	if opts.Logf == nil {
		// timers may log after the test returned
		opts.Logf = func(string, ...any) {}
	}
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	server, err := NewServer(inR, outW, opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	c := &testClient{t: t, in: inW, msgs: make(chan *rpcMessage, 256), done: make(chan error, 1)}
	go func() {
		c.done <- server.Run(context.Background())
		outW.Close()
	}()
	go func() {
		r := bufio.NewReader(outR)
		for {
			payload, err := readMessage(r)
			if err != nil {
				close(c.msgs)
				return
			}
			var msg rpcMessage
			if err := json.Unmarshal(payload, &msg); err == nil {
				c.msgs <- &msg
			}
		}
	}()
	t.Cleanup(func() {
		inW.Close()
		select {
		case <-c.done:
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return c, server
}

func (c *testClient) write(msg map[string]any) {
	c.t.Helper()
	msg["jsonrpc"] = "2.0"
	payload, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	if err := writeMessage(c.in, payload); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) call(method string, params any) int {
	c.nextID++
	c.write(map[string]any{"id": c.nextID, "method": method, "params": params})
	return c.nextID
}

func (c *testClient) notify(method string, params any) {
	c.write(map[string]any{"method": method, "params": params})
}

func (c *testClient) reply(id json.RawMessage, result any) {
	c.write(map[string]any{"id": id, "result": result})
}

// next returns the first message accepted by match, dropping others.
func (c *testClient) next(what string, match func(*rpcMessage) bool) *rpcMessage {
	c.t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case msg, ok := <-c.msgs:
			if !ok {
				c.t.Fatalf("connection closed waiting for %s", what)
			}
			if match(msg) {
				return msg
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (c *testClient) method(name string) *rpcMessage {
	c.t.Helper()
	return c.next(name, func(m *rpcMessage) bool { return m.Method == name })
}

func (c *testClient) response(id int) *rpcMessage {
	c.t.Helper()
	want, _ := json.Marshal(id)
	return c.next("response", func(m *rpcMessage) bool {
		return m.Method == "" && string(m.ID) == string(want)
	})
}

func (c *testClient) initialize(root string) {
	c.t.Helper()
	id := c.call("initialize", map[string]any{"rootUri": pathToURI(root)})
	c.response(id)
	c.notify("initialized", map[string]any{})
}

func (c *testClient) open(uri, text string) {
	c.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "dart", Version: 1, Text: text},
	})
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

func TestInitializeAdvertisesCommands(t *testing.T) {
	c, _ := startServer(t, ServerOptions{Version: "1.2.3"})
	id := c.call("initialize", map[string]any{"rootUri": pathToURI(t.TempDir())})
	res := decode[initializeResult](t, c.response(id).Result)
	if res.Capabilities.ExecuteCommandProvider == nil || len(res.Capabilities.ExecuteCommandProvider.Commands) != len(commandNames()) {
		t.Fatalf("unexpected commands: %+v", res.Capabilities.ExecuteCommandProvider)
	}
	if !res.Capabilities.DocumentSymbolProvider || res.Capabilities.CodeActionProvider == nil {
		t.Fatalf("missing providers: %+v", res.Capabilities)
	}
	if res.ServerInfo == nil || res.ServerInfo.Version != "1.2.3" {
		t.Fatalf("unexpected server info: %+v", res.ServerInfo)
	}
}

func TestShutdownAndExit(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	id := c.call("shutdown", nil)
	c.response(id)
	c.notify("exit", nil)
	select {
	case err := <-c.done:
		if !errors.Is(err, ErrExit) {
			t.Fatalf("expected ErrExit, got %v", err)
		}
		c.done <- err
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not exit")
	}
}

func TestUnknownMethod(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	id := c.call("textDocument/hover", map[string]any{})
	msg := c.response(id)
	if msg.Error == nil || msg.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", msg.Error)
	}
}

func TestWrapCommandAppliesEditAndFormats(t *testing.T) {
	c, _ := startServer(t, ServerOptions{Formatter: upperFormatter{}})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	cursor := lspRange{Start: position{Line: 2, Character: 12}, End: position{Line: 2, Character: 12}}
	id := c.call("workspace/executeCommand", map[string]any{
		"command":   cmdWrap,
		"arguments": []any{uri, cursor, "wrapping.wrapWithPadding"},
	})

	req := c.method("workspace/applyEdit")
	params := decode[applyWorkspaceEditParams](t, req.Params)
	edits := params.Edit.Changes[uri]
	if len(edits) != 1 {
		t.Fatalf("expected one edit, got %+v", params.Edit)
	}
	want := "Padding(\n  padding: const EdgeInsets.all(8.0),\n  child: Text('hi'),\n)"
	if edits[0].NewText != want {
		t.Fatalf("unexpected wrap text %q", edits[0].NewText)
	}
	if edits[0].Range != (lspRange{Start: position{Line: 2, Character: 11}, End: position{Line: 2, Character: 21}}) {
		t.Fatalf("unexpected range %+v", edits[0].Range)
	}
	c.reply(req.ID, applyWorkspaceEditResult{Applied: true})

	info := decode[showMessageParams](t, c.method("window/showMessage").Params)
	if info.Type != messageInfo || info.Message != "Wrapped with Padding" {
		t.Fatalf("unexpected message %+v", info)
	}

	req = c.method("workspace/applyEdit")
	formatted := decode[applyWorkspaceEditParams](t, req.Params).Edit.Changes[uri]
	if len(formatted) != 1 || strings.Contains(formatted[0].NewText, "const EdgeInsets") {
		t.Fatalf("unexpected format edit %+v", formatted)
	}
	if !strings.Contains(formatted[0].NewText, "child: Padding(") {
		t.Fatalf("format edit lost the wrap: %q", formatted[0].NewText)
	}
	c.reply(req.ID, applyWorkspaceEditResult{Applied: true})
	if msg := c.response(id); msg.Error != nil {
		t.Fatalf("executeCommand failed: %+v", msg.Error)
	}
}

func TestWrapCommandReportsMissingWidget(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "a.dart"))
	c.open(uri, "final x = 1;\n")

	id := c.call("workspace/executeCommand", map[string]any{
		"command":   cmdWrap,
		"arguments": []any{uri, lspRange{}, "wrapping.wrapWithCenter"},
	})
	msg := decode[showMessageParams](t, c.method("window/showMessage").Params)
	if msg.Type != messageError || msg.Message != msgNoWidget {
		t.Fatalf("unexpected message %+v", msg)
	}
	c.response(id)
}

func TestWrapCommandRejectedEdit(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	c.call("workspace/executeCommand", map[string]any{
		"command":   cmdWrap,
		"arguments": []any{uri, lspRange{Start: position{Line: 2, Character: 12}, End: position{Line: 2, Character: 12}}, "wrapping.wrapWithCenter"},
	})
	req := c.method("workspace/applyEdit")
	c.reply(req.ID, applyWorkspaceEditResult{Applied: false, FailureReason: "document changed"})
	msg := decode[showMessageParams](t, c.method("window/showMessage").Params)
	if msg.Type != messageError || msg.Message != msgWrapFailed {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestWrapCommandUnknownTemplate(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	id := c.call("workspace/executeCommand", map[string]any{
		"command":   cmdWrap,
		"arguments": []any{"file:///a.dart", lspRange{}, "wrapping.nope"},
	})
	msg := c.response(id)
	if msg.Error == nil || msg.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", msg.Error)
	}
}

func TestPickerWrapsWithChosenTemplate(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	cursor := lspRange{Start: position{Line: 2, Character: 12}, End: position{Line: 2, Character: 12}}
	c.call("workspace/executeCommand", map[string]any{
		"command":   cmdShowWrapperPicker,
		"arguments": []any{uri, cursor},
	})
	req := c.method("window/showMessageRequest")
	prompt := decode[showMessageRequestParams](t, req.Params)
	found := false
	for _, a := range prompt.Actions {
		found = found || a.Title == "Wrap with Align"
	}
	if !found {
		t.Fatalf("picker misses Align: %+v", prompt.Actions)
	}
	c.reply(req.ID, messageActionItem{Title: "Wrap with Align"})

	edit := c.method("workspace/applyEdit")
	text := decode[applyWorkspaceEditParams](t, edit.Params).Edit.Changes[uri][0].NewText
	if !strings.HasPrefix(text, "Align(") {
		t.Fatalf("unexpected wrap %q", text)
	}
}

func TestPickerDismissed(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	id := c.call("workspace/executeCommand", map[string]any{
		"command":   cmdShowWrapperPicker,
		"arguments": []any{uri, lspRange{}},
	})
	req := c.method("window/showMessageRequest")
	c.reply(req.ID, nil)
	if msg := c.response(id); msg.Error != nil {
		t.Fatalf("unexpected error %+v", msg.Error)
	}
}

func TestToggleWrapperPersistsAndFiltersPicker(t *testing.T) {
	catalog, err := wrapper.Builtin()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	flags := store.NewMemory()
	registry := wrapper.NewRegistry(catalog, flags)
	c, _ := startServer(t, ServerOptions{Registry: registry})
	root := t.TempDir()
	c.initialize(root)

	id := c.call("workspace/executeCommand", map[string]any{
		"command":   cmdToggleWrapper,
		"arguments": []any{"wrapping.wrapWithAlign"},
	})
	res := decode[map[string]any](t, c.response(id).Result)
	if res["enabled"] != false {
		t.Fatalf("expected wrapper disabled, got %+v", res)
	}
	saved, _ := flags.Load(context.Background(), root)
	if enabled, ok := saved["wrapping.wrapWithAlign"]; !ok || enabled {
		t.Fatalf("flag not persisted: %+v", saved)
	}

	id = c.call(methodWrappers, nil)
	groups := decode[[]wrapperGroup](t, c.response(id).Result)
	for _, g := range groups {
		for _, w := range g.Wrappers {
			if w.ID == "wrapping.wrapWithAlign" && w.Enabled {
				t.Fatalf("wrappers view still shows Align enabled")
			}
		}
	}
}

func TestCodeActions(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	at := func(line, char int) []codeAction {
		id := c.call("textDocument/codeAction", codeActionParams{
			TextDocument: textDocumentIdentifier{URI: uri},
			Range:        lspRange{Start: position{Line: line, Character: char}, End: position{Line: line, Character: char}},
		})
		return decode[[]codeAction](t, c.response(id).Result)
	}

	onCenter := at(1, 10)
	if onCenter[0].Command.Command != cmdShowWrapperPicker {
		t.Fatalf("first action should open the picker: %+v", onCenter[0])
	}
	last := onCenter[len(onCenter)-1]
	if last.Title != "Remove this widget" || last.Command.Command != cmdUnwrap {
		t.Fatalf("expected unwrap action, got %+v", last)
	}
	if len(onCenter) < 3 {
		t.Fatalf("expected template actions, got %d", len(onCenter))
	}

	onBrace := at(4, 0)
	if len(onBrace) != 1 {
		t.Fatalf("expected only the picker action, got %d", len(onBrace))
	}
}

func TestUnwrapCommand(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	c.call("workspace/executeCommand", map[string]any{
		"command":   cmdUnwrap,
		"arguments": []any{uri, position{Line: 1, Character: 10}},
	})
	req := c.method("workspace/applyEdit")
	edits := decode[applyWorkspaceEditParams](t, req.Params).Edit.Changes[uri]
	if len(edits) != 1 || edits[0].NewText != "Text('hi')" {
		t.Fatalf("unexpected unwrap edit %+v", edits)
	}
	c.reply(req.ID, applyWorkspaceEditResult{Applied: true})
	msg := decode[showMessageParams](t, c.method("window/showMessage").Params)
	if msg.Message != "Removed Center wrapper" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestOutlineRequests(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())

	id := c.call(methodOutlineChildren, outlineChildrenParams{})
	items := decode[[]outlineItem](t, c.response(id).Result)
	if len(items) != 1 || items[0].Label != outline.MsgNoDocument {
		t.Fatalf("expected placeholder, got %+v", items)
	}

	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)
	c.method(methodOutlineChanged)

	id = c.call(methodOutlineChildren, outlineChildrenParams{URI: uri})
	roots := decode[[]outlineItem](t, c.response(id).Result)
	if len(roots) != 1 || roots[0].Label != "Center" || roots[0].State != "expanded" {
		t.Fatalf("unexpected roots %+v", roots)
	}
	if roots[0].Range.Start != (position{Line: 1, Character: 9}) {
		t.Fatalf("unexpected range %+v", roots[0].Range)
	}

	id = c.call(methodOutlineChildren, outlineChildrenParams{ParentID: roots[0].ID})
	children := decode[[]outlineItem](t, c.response(id).Result)
	if len(children) != 1 || children[0].Label != "Text" {
		t.Fatalf("unexpected children %+v", children)
	}
	if children[0].Description != `Line 3 - "hi"` {
		t.Fatalf("unexpected description %q", children[0].Description)
	}

	id = c.call(methodOutlineParent, nodeParams{NodeID: children[0].ID})
	parent := decode[outlineItem](t, c.response(id).Result)
	if parent.ID != roots[0].ID {
		t.Fatalf("unexpected parent %+v", parent)
	}

	id = c.call("workspace/executeCommand", map[string]any{"command": cmdCollapseAll})
	c.response(id)
	id = c.call(methodOutlineChildren, outlineChildrenParams{})
	roots = decode[[]outlineItem](t, c.response(id).Result)
	if roots[0].State != "collapsed" {
		t.Fatalf("collapseAll not applied: %+v", roots[0])
	}

	id = c.call("workspace/executeCommand", map[string]any{"command": cmdToggleOutlineMode})
	mode := decode[map[string]bool](t, c.response(id).Result)
	if mode["compact"] {
		t.Fatalf("expected detailed mode")
	}
}

func TestOutlineFollowsEdits(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)
	c.method(methodOutlineChanged)

	c.notify("textDocument/didChange", didChangeTextDocumentParams{
		TextDocument: versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{
			Range: &lspRange{Start: position{Line: 1, Character: 9}, End: position{Line: 1, Character: 15}},
			Text:  "Align",
		}},
	})
	c.method(methodOutlineChanged)

	id := c.call(methodOutlineChildren, outlineChildrenParams{})
	roots := decode[[]outlineItem](t, c.response(id).Result)
	if len(roots) != 1 || roots[0].Label != "Align" {
		t.Fatalf("outline not rebuilt: %+v", roots)
	}
}

func TestCursorMovedRevealsNode(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)
	c.method(methodOutlineChanged)

	c.notify(methodCursorMoved, cursorMovedParams{URI: uri, Position: position{Line: 2, Character: 4}})
	reveal := decode[revealNodeParams](t, c.method(methodRevealNode).Params)
	if reveal.Node.Label != "Text" || len(reveal.Ancestors) != 1 {
		t.Fatalf("unexpected reveal %+v", reveal)
	}
}

func TestCursorEchoAfterRevealIsDropped(t *testing.T) {
	c, _ := startServer(t, ServerOptions{CursorDebounce: 10 * time.Millisecond})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)
	c.method(methodOutlineChanged)

	c.notify(methodCursorMoved, cursorMovedParams{URI: uri, Position: position{Line: 2, Character: 4}})
	reveal := decode[revealNodeParams](t, c.method(methodRevealNode).Params)
	if reveal.Node.Label != "Text" {
		t.Fatalf("unexpected reveal %+v", reveal)
	}

	// клиент отвечает на reveal переходом на ту же строку
	c.notify(methodCursorMoved, cursorMovedParams{URI: uri, Position: position{Line: 2, Character: 4}})
	time.Sleep(100 * time.Millisecond)
	c.notify(methodCursorMoved, cursorMovedParams{URI: uri, Position: position{Line: 1, Character: 9}})
	reveal = decode[revealNodeParams](t, c.method(methodRevealNode).Params)
	if reveal.Node.Label != "Center" {
		t.Fatalf("echo was synced: got %+v", reveal)
	}
}

func TestRemoveWrapperAtNode(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)
	c.method(methodOutlineChanged)

	id := c.call(methodOutlineChildren, outlineChildrenParams{})
	roots := decode[[]outlineItem](t, c.response(id).Result)

	c.call("workspace/executeCommand", map[string]any{
		"command":   cmdRemoveWrapperAtNode,
		"arguments": []any{map[string]string{"id": roots[0].ID}},
	})
	req := c.method("workspace/applyEdit")
	edits := decode[applyWorkspaceEditParams](t, req.Params).Edit.Changes[uri]
	if len(edits) != 1 || edits[0].NewText != "Text('hi')" {
		t.Fatalf("unexpected edit %+v", edits)
	}
}

func TestWrapAtNodeOpensPicker(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)
	c.method(methodOutlineChanged)

	id := c.call(methodOutlineChildren, outlineChildrenParams{})
	roots := decode[[]outlineItem](t, c.response(id).Result)

	c.call("workspace/executeCommand", map[string]any{
		"command":   cmdWrapAtNode,
		"arguments": []any{roots[0].ID},
	})
	show := c.method("window/showDocument")
	params := decode[showDocumentParams](t, show.Params)
	if params.Selection == nil || params.Selection.Start != (position{Line: 1, Character: 9}) {
		t.Fatalf("unexpected selection %+v", params.Selection)
	}
	// clients without showDocument answer with an error
	c.write(map[string]any{"id": show.ID, "error": rpcError{Code: codeMethodNotFound, Message: "unsupported"}})
	c.method("window/showMessageRequest")
}

func TestDocumentSymbols(t *testing.T) {
	c, _ := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	uri := pathToURI(filepath.Join(t.TempDir(), "home.dart"))
	c.open(uri, screen)

	id := c.call("textDocument/documentSymbol", documentSymbolParams{TextDocument: textDocumentIdentifier{URI: uri}})
	symbols := decode[[]documentSymbol](t, c.response(id).Result)
	if len(symbols) != 1 || symbols[0].Name != "Center" || len(symbols[0].Children) != 1 {
		t.Fatalf("unexpected symbols %+v", symbols)
	}
	want := lspRange{Start: position{Line: 1, Character: 9}, End: position{Line: 3, Character: 3}}
	if symbols[0].Range != want {
		t.Fatalf("unexpected range %+v", symbols[0].Range)
	}
}

func TestDidChangeConfiguration(t *testing.T) {
	c, server := startServer(t, ServerOptions{})
	c.initialize(t.TempDir())
	c.notify("workspace/didChangeConfiguration", map[string]any{
		"settings": map[string]any{"widgetwrap": map[string]any{"outline": map[string]any{"compact": false, "initialDepth": 1}}},
	})
	// a round trip orders the notification before the check
	c.response(c.call(methodWrappers, nil))
	if server.session.Compact() {
		t.Fatalf("compact mode not applied")
	}
}

var _ format.Formatter = upperFormatter{}
