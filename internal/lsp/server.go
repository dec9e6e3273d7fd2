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

	"sfcls/internal/diagnostics"
	"sfcls/internal/engine"
	"sfcls/internal/project"
	"sfcls/internal/sfc"
	"sfcls/internal/source"
	"sfcls/internal/vdoc"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior. Zero values fall back to the
// workspace sfcls.toml, then to built-in defaults.
type ServerOptions struct {
	Debounce          time.Duration
	MaxDiagnostics    int
	IncludeSideEffect bool
	Dialect           string
	Trace             bool

	Script engine.ScriptEngine
	Markup engine.MarkupEngine
	Style  engine.StyleEngine
}

// openDoc держит всё состояние одного открытого компонентного файла.
// The pipeline is single-threaded per file, so edits, feature requests and
// diagnostic runs all serialize on mu.
type openDoc struct {
	mu sync.Mutex

	uri     string
	path    string
	text    string
	version int

	// docs accumulates one component Doc per received version; id names the
	// latest. Virtual-document spans always resolve against the version the
	// diagnostics run saw.
	docs *source.DocSet
	id   source.DocID

	file *sfc.File
	eng  *diagnostics.Engine
}

// Server handles stdio JSON-RPC for the component language server.
type Server struct {
	in     *bufio.Reader
	out    *bufio.Writer
	sendMu sync.Mutex

	mu          sync.Mutex
	open        map[string]*openDoc
	published   map[string]struct{}
	lastTouched string

	workspaceRoot     string
	shutdownRequested bool

	debounce          time.Duration
	debounceTimer     *time.Timer
	diagCancel        context.CancelFunc
	analysisSeq       uint64
	latestSeq         uint64
	maxDiagnostics    int
	includeSideEffect bool
	dialect           string
	traceLSP          bool
	baseCtx           context.Context

	script engine.ScriptEngine
	markup engine.MarkupEngine
	style  engine.StyleEngine
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = time.Duration(project.Default().Diagnostics.DebounceMS) * time.Millisecond
	}
	maxDiagnostics := opts.MaxDiagnostics
	if maxDiagnostics <= 0 {
		maxDiagnostics = project.Default().Diagnostics.Max
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = vdoc.DialectHTML
	}
	return &Server{
		in:                bufio.NewReader(in),
		out:               bufio.NewWriter(out),
		open:              make(map[string]*openDoc),
		published:         make(map[string]struct{}),
		debounce:          debounce,
		maxDiagnostics:    maxDiagnostics,
		includeSideEffect: opts.IncludeSideEffect,
		dialect:           dialect,
		traceLSP:          opts.Trace,
		script:            opts.Script,
		markup:            opts.Markup,
		style:             opts.Style,
	}
}

// Run serves LSP requests until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
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
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if s.shutdownRequested {
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
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "completionItem/resolve":
		return s.handleCompletionResolve(msg)
	case "textDocument/definition":
		return s.handleDefinition(msg)
	case "textDocument/selectionRange":
		return s.handleSelectionRange(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, -32601, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		if p, err := uriToPath(params.RootURI); err == nil {
			root = p
		}
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		if p, err := uriToPath(params.WorkspaceFolders[0].URI); err == nil {
			root = p
		}
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}

	cfg := project.Default()
	if root != "" {
		loaded, err := project.LoadConfigFor(root)
		if err != nil {
			s.logf("config: %v", err)
		} else {
			cfg = loaded
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.debounce = time.Duration(cfg.Diagnostics.DebounceMS) * time.Millisecond
	if s.maxDiagnostics <= 0 {
		s.maxDiagnostics = cfg.Diagnostics.Max
	}
	s.includeSideEffect = cfg.Diagnostics.IncludeSideEffectProducers
	if cfg.Template.Dialect != "" {
		s.dialect = cfg.Template.Dialect
	}
	s.mu.Unlock()

	result := initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save: saveOptions{
					IncludeText: true,
				},
			},
			DefinitionProvider:     true,
			SelectionRangeProvider: true,
			CompletionProvider: &completionOptions{
				TriggerCharacters: []string{".", ":", "<", "$", "@"},
				ResolveProvider:   true,
			},
		},
	}
	return s.sendResponse(msg.ID, result)
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.clearPublishedDiagnostics()
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	path, err := componentPath(uri)
	if err != nil {
		s.logf("didOpen: %v", err)
		return nil
	}

	d := &openDoc{
		uri:     uri,
		path:    path,
		text:    params.TextDocument.Text,
		version: params.TextDocument.Version,
		docs:    source.NewDocSet(),
	}
	d.id = d.docs.Add(path, []byte(d.text), 0)
	d.file = sfc.New(path, s.script, s.currentDialect())
	scriptChanged, tmplChanged, err := d.file.Update(d.text)
	if err != nil {
		s.logf("didOpen %s: %v", uri, err)
		return nil
	}
	d.eng = diagnostics.NewEngine(d.file, d.id, s.script, s.markup, s.style, s.currentMax())
	d.eng.NoteChange(scriptChanged, tmplChanged)

	s.mu.Lock()
	s.open[uri] = d
	s.lastTouched = uri
	s.mu.Unlock()
	s.scheduleDiagnostics()
	return nil
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	d, ok := s.open[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	d.version = params.TextDocument.Version
	s.lastTouched = uri
	trace := s.traceLSP
	s.mu.Unlock()

	s.applyEdits(d, params.ContentChanges)
	if trace {
		s.logf("didChange: uri=%s version=%d", uri, params.TextDocument.Version)
	}
	s.scheduleDiagnostics()
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	d, ok := s.open[uri]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.lastTouched = uri
	s.mu.Unlock()

	d.mu.Lock()
	if params.Text != nil {
		d.text = *params.Text
	}
	s.applyTextLocked(d)
	d.mu.Unlock()
	s.scheduleDiagnostics()
	return nil
}

// applyEdits resolves the incremental change batch against the current
// document version and pushes the result through the file pipeline.
func (s *Server) applyEdits(d *openDoc, changes []textDocumentContentChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.text = applyChanges(d.docs.Get(d.id), changes)
	s.applyTextLocked(d)
}

// applyTextLocked re-registers the document content and pushes it through the
// file pipeline. Generators memoize per section, so an edit confined to one
// block leaves the other virtual documents untouched. Caller holds d.mu.
func (s *Server) applyTextLocked(d *openDoc) {
	d.id = d.docs.Add(d.path, []byte(d.text), 0)
	d.eng.SetDoc(d.id)
	scriptChanged, tmplChanged, err := d.file.Update(d.text)
	if err != nil {
		s.logf("update %s: %v", d.uri, err)
		return
	}
	d.eng.NoteChange(scriptChanged, tmplChanged)
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.open, uri)
	if s.lastTouched == uri {
		s.lastTouched = ""
	}
	_, hadDiagnostics := s.published[uri]
	delete(s.published, uri)
	s.mu.Unlock()
	if hadDiagnostics {
		if err := s.sendPublish(uri, nil); err != nil {
			s.logf("failed to clear diagnostics: %v", err)
		}
	}
	return nil
}

func (s *Server) lookupDoc(uri string) *openDoc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open[uri]
}

func (s *Server) currentDialect() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialect
}

func (s *Server) currentMax() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDiagnostics
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"result":  result,
	}
	return s.send(msg)
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      json.RawMessage(id),
		"error": rpcError{
			Code:    code,
			Message: message,
		},
	}
	return s.send(msg)
}

func (s *Server) sendPublish(uri string, list []lspDiagnostic) error {
	if list == nil {
		list = []lspDiagnostic{}
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "textDocument/publishDiagnostics",
		"params": publishDiagnosticsParams{
			URI:         uri,
			Diagnostics: list,
		},
	}
	return s.send(msg)
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
	fmt.Fprintf(os.Stderr, "lsp: "+format+"\n", args...)
}

func (s *Server) isLatestSeq(seq uint64) bool {
	if seq == 0 {
		return false
	}
	return seq == atomic.LoadUint64(&s.latestSeq)
}
