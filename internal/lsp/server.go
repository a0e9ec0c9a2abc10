package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"widgetwrap/internal/format"
	"widgetwrap/internal/locate"
	"widgetwrap/internal/outline"
	"widgetwrap/internal/source"
	"widgetwrap/internal/trace"
	"widgetwrap/internal/wrapper"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Debounce delays outline rebuilds after edits.
	Debounce time.Duration
	// CursorDebounce delays outline selection sync after cursor moves.
	CursorDebounce time.Duration
	Registry       *wrapper.Registry
	Locator        *locate.Locator
	// Formatter runs after successful edits; nil disables formatting.
	Formatter format.Formatter
	Outline   outline.Options
	Version   string
	Logf      func(format string, args ...any)
}

type docState struct {
	text       string
	version    int
	languageID string
}

// Server handles stdio JSON-RPC for the widget wrapper.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex
	mu     sync.Mutex
	docs   map[string]*docState

	workspaceRoot     string
	shutdownRequested bool
	debounce          time.Duration
	cursorDebounce    time.Duration
	debounceTimer     *time.Timer
	rebuildSeq        atomic.Uint64
	activeURI         string
	baseCtx           context.Context
	traceLSP          bool
	version           string

	registry  *wrapper.Registry
	locator   *locate.Locator
	formatter format.Formatter
	builder   *outline.Builder
	session   *outline.Session
	syncer    *outline.Syncer

	nextID    atomic.Int64
	pendingMu sync.Mutex
	pending   map[string]chan *rpcMessage
	closed    bool
	commands  sync.WaitGroup
	logfn     func(format string, args ...any)
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) (*Server, error) {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	registry := opts.Registry
	if registry == nil {
		catalog, err := wrapper.Builtin()
		if err != nil {
			return nil, err
		}
		registry = wrapper.NewRegistry(catalog, nil)
	}
	locator := opts.Locator
	if locator == nil {
		var err error
		if locator, err = locate.New(source.LanguageDart); err != nil {
			return nil, err
		}
	}
	if opts.Outline == (outline.Options{}) {
		opts.Outline = outline.DefaultOptions()
	}
	if opts.Outline.Builder == nil {
		opts.Outline.Builder = &outline.Builder{}
	}
	s := &Server{
		in:             bufio.NewReader(in),
		out:            bufio.NewWriter(out),
		docs:           make(map[string]*docState),
		debounce:       debounce,
		cursorDebounce: opts.CursorDebounce,
		version:        opts.Version,
		registry:       registry,
		locator:        locator,
		formatter:      opts.Formatter,
		builder:        opts.Outline.Builder,
		session:        outline.NewSession(opts.Outline),
		pending:        make(map[string]chan *rpcMessage),
		logfn:          opts.Logf,
		baseCtx:        context.Background(),
	}
	s.session.OnRefresh(s.outlineChanged)
	s.syncer = outline.NewSyncer(s.baseCtx, s.session, s.cursorDebounce, s.revealNode, s.logf)
	return s, nil
}

// Run serves LSP requests until exit or end of input.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.syncer = outline.NewSyncer(ctx, s.session, s.cursorDebounce, s.revealNode, s.logf)
	defer s.stop()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			if len(msg.ID) > 0 {
				s.deliver(&msg)
			}
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) stop() {
	s.mu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.mu.Unlock()
	s.syncer.Stop()
	s.closePending()
	s.commands.Wait()
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized", "$/cancelRequest", "$/setTrace":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.isShutdown() {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/codeAction":
		return s.handleCodeAction(msg)
	case "textDocument/documentSymbol":
		return s.handleDocumentSymbol(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case methodOutlineChildren:
		return s.handleOutlineChildren(msg)
	case methodOutlineParent:
		return s.handleOutlineParent(msg)
	case methodSetExpanded:
		return s.handleSetExpanded(msg)
	case methodWrappers:
		return s.handleWrappers(msg)
	case methodCursorMoved:
		return s.handleCursorMoved(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()

	if err := s.registry.Init(s.baseCtx, root); err != nil {
		s.logf("failed to load wrapper settings: %v", err)
	}
	if len(params.InitializationOptions) > 0 {
		s.applySettings(params.InitializationOptions)
	}

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			CodeActionProvider:     &codeActionOptions{CodeActionKinds: []string{codeActionKind}},
			DocumentSymbolProvider: true,
			ExecuteCommandProvider: &executeCommandOptions{Commands: commandNames()},
		},
		ServerInfo: &serverInfo{Name: "widgetwrap", Version: s.version},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.mu.Unlock()
	s.syncer.Stop()
	s.registry.Reset()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) isShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownRequested
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didOpen: %v", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	languageID := params.TextDocument.LanguageID
	if languageID == "" {
		languageID = source.LanguageFor(uriToPath(uri))
	}
	s.mu.Lock()
	s.docs[uri] = &docState{
		text:       params.TextDocument.Text,
		version:    params.TextDocument.Version,
		languageID: languageID,
	}
	s.mu.Unlock()
	s.touch(uri)
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didChange: %v", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	doc.text = applyChanges(doc.text, params.ContentChanges)
	oldVersion := doc.version
	doc.version = params.TextDocument.Version
	traceLSP := s.traceLSP
	s.mu.Unlock()
	if traceLSP {
		s.logf("didChange: uri=%s version=%d->%d", uri, oldVersion, documentVersion(params.TextDocument.Version))
	}
	s.touch(uri)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didSave: %v", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if ok && params.Text != nil {
		doc.text = *params.Text
	}
	s.mu.Unlock()
	if ok {
		s.touch(uri)
	}
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.logf("didClose: %v", err)
		return nil
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	s.mu.Lock()
	delete(s.docs, uri)
	wasActive := s.activeURI == uri
	if wasActive {
		s.activeURI = ""
		if s.debounceTimer != nil {
			s.debounceTimer.Stop()
		}
	}
	s.mu.Unlock()
	if wasActive {
		s.syncer.Stop()
		s.session.Reset()
	}
	return nil
}

// document snapshots an open document. Unknown URIs yield nil.
func (s *Server) document(uri string) *source.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil
	}
	return source.NewDocument(uriToPath(uri), doc.languageID, doc.text)
}

func (s *Server) active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeURI
}

func (s *Server) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) notify(method string, params any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := writeMessage(s.out, payload); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Server) logf(format string, args ...any) {
	if s.logfn != nil {
		s.logfn(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, "lsp: "+format+"\n", args...)
	trace.Point(trace.FromContext(s.ctx()), trace.ScopeSession, "lsp.log", fmt.Sprintf(format, args...))
}
