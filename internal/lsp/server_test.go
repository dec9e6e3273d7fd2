package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"sfcls/internal/engine"
	"sfcls/internal/sourcemap"
	"sfcls/internal/testkit"
	"sfcls/internal/vdoc"
)

const testComponent = "<template><p>{{ n }}</p></template>\n<script setup>\nlet n = 1\n</script>\n"

type testClient struct {
	t       *testing.T
	srv     *Server
	writer  *io.PipeWriter
	reader  *bufio.Reader
	done    chan error
	nextID  int
	scripts *testkit.FakeScriptEngine
}

func startServer(t *testing.T, script *testkit.FakeScriptEngine) *testClient {
	t.Helper()
	if script == nil {
		script = &testkit.FakeScriptEngine{}
	}
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	srv := NewServer(inR, outW, ServerOptions{
		Debounce:          5 * time.Millisecond,
		IncludeSideEffect: true,
		Script:            script,
		Markup:            &testkit.FakeMarkupEngine{},
		Style:             &testkit.FakeStyleEngine{},
	})
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(context.Background())
	}()
	c := &testClient{
		t:       t,
		srv:     srv,
		writer:  inW,
		reader:  bufio.NewReader(outR),
		done:    done,
		scripts: script,
	}
	t.Cleanup(func() { inW.Close() })
	return c
}

func (c *testClient) notify(method string, params any) {
	c.t.Helper()
	c.sendRaw(map[string]any{"jsonrpc": "2.0", "method": method, "params": params})
}

func (c *testClient) request(method string, params any) int {
	c.t.Helper()
	c.nextID++
	c.sendRaw(map[string]any{"jsonrpc": "2.0", "id": c.nextID, "method": method, "params": params})
	return c.nextID
}

func (c *testClient) sendRaw(msg map[string]any) {
	c.t.Helper()
	payload, err := json.Marshal(msg)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	if err := writeMessage(c.writer, payload); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// read returns the next server message, failing the test after a timeout.
func (c *testClient) read() rpcMessage {
	c.t.Helper()
	type result struct {
		msg rpcMessage
		err error
	}
	ch := make(chan result, 1)
	go func() {
		payload, err := readMessage(c.reader)
		if err != nil {
			ch <- result{err: err}
			return
		}
		var msg rpcMessage
		err = json.Unmarshal(payload, &msg)
		ch <- result{msg: msg, err: err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			c.t.Fatalf("read message: %v", r.err)
		}
		return r.msg
	case <-time.After(5 * time.Second):
		c.t.Fatalf("timed out waiting for server message")
		return rpcMessage{}
	}
}

// awaitResponse reads until the response with the given id arrives. Publish
// notifications in between are discarded.
func (c *testClient) awaitResponse(id int) rpcMessage {
	c.t.Helper()
	want := fmt.Sprintf("%d", id)
	for i := 0; i < 50; i++ {
		msg := c.read()
		if string(msg.ID) == want {
			return msg
		}
	}
	c.t.Fatalf("no response for id %d", id)
	return rpcMessage{}
}

// awaitPublish reads until a publishDiagnostics for uri satisfies ok.
func (c *testClient) awaitPublish(uri string, ok func(publishDiagnosticsParams) bool) publishDiagnosticsParams {
	c.t.Helper()
	for i := 0; i < 100; i++ {
		msg := c.read()
		if msg.Method != "textDocument/publishDiagnostics" {
			continue
		}
		var params publishDiagnosticsParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			c.t.Fatalf("bad publish params: %v", err)
		}
		if params.URI != uri || !ok(params) {
			continue
		}
		return params
	}
	c.t.Fatalf("expected publish for %s never arrived", uri)
	return publishDiagnosticsParams{}
}

func (c *testClient) initialize() {
	c.t.Helper()
	id := c.request("initialize", initializeParams{})
	resp := c.awaitResponse(id)
	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		c.t.Fatalf("initialize result: %v", err)
	}
	if !result.Capabilities.DefinitionProvider {
		c.t.Fatalf("definition capability not advertised")
	}
	if cp := result.Capabilities.CompletionProvider; cp == nil || !cp.ResolveProvider {
		c.t.Fatalf("completion resolve capability not advertised")
	}
	c.notify("initialized", struct{}{})
}

func (c *testClient) openDoc(uri, text string) {
	c.t.Helper()
	c.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "sfc", Version: 1, Text: text},
	})
}

func (c *testClient) shutdownAndExit() {
	c.t.Helper()
	id := c.request("shutdown", nil)
	c.awaitResponse(id)
	c.notify("exit", nil)
	select {
	case err := <-c.done:
		if !errors.Is(err, ErrExit) {
			c.t.Fatalf("Run returned %v, want ErrExit", err)
		}
	case <-time.After(5 * time.Second):
		c.t.Fatalf("server did not exit")
	}
}

func TestServerPublishesMissingScriptHint(t *testing.T) {
	c := startServer(t, nil)
	c.initialize()

	uri := "file:///ws/Bare.sfc"
	c.openDoc(uri, "<template><p>hi</p></template>\n")

	params := c.awaitPublish(uri, func(p publishDiagnosticsParams) bool {
		for _, d := range p.Diagnostics {
			if d.Code == "SFC1001" {
				return true
			}
		}
		return false
	})
	for _, d := range params.Diagnostics {
		if d.Code == "SFC1001" && d.Severity != 4 {
			t.Errorf("missing-script severity = %d, want 4 (hint)", d.Severity)
		}
	}
	c.shutdownAndExit()
}

func TestServerCompletionTargetsOverlayDocument(t *testing.T) {
	script := &testkit.FakeScriptEngine{}
	c := startServer(t, script)
	c.initialize()

	uri := "file:///ws/App.sfc"
	c.openDoc(uri, testComponent)

	// Курсор на объявлении внутри script setup
	declLine := strings.Count(testComponent[:strings.Index(testComponent, "let n")], "\n")
	id := c.request("textDocument/completion", completionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: declLine, Character: 4},
	})
	resp := c.awaitResponse(id)
	var list completionList
	if err := json.Unmarshal(resp.Result, &list); err != nil {
		t.Fatalf("completion result: %v", err)
	}

	found := false
	for _, call := range script.Calls() {
		if strings.HasPrefix(call, "complete:") && strings.Contains(call, vdoc.SuffixScriptCompletion) {
			found = true
		}
	}
	if !found {
		t.Errorf("completion did not query the overlay document: %v", script.Calls())
	}
	c.shutdownAndExit()
}

func TestServerCompletionResolveRemapsEdits(t *testing.T) {
	script := &testkit.FakeScriptEngine{
		Resolve: func(doc *vdoc.Document, item engine.CompletionItem) engine.CompletionItem {
			item.Detail = "let n: number"
			item.NeedsResolve = false
			return item
		},
	}
	c := startServer(t, script)
	c.initialize()

	uri := "file:///ws/App.sfc"
	c.openDoc(uri, testComponent)
	c.awaitPublish(uri, func(publishDiagnosticsParams) bool { return true })

	// Диапазон объявления n в координатах overlay-документа
	nStart := uint32(strings.Index(testComponent, "let n") + 4)
	d := c.srv.lookupDoc(uri)
	if d == nil {
		t.Fatalf("document not registered after open")
	}
	d.mu.Lock()
	setup := d.file.Setup()
	if setup == nil || setup.Completion.Doc == nil || setup.Completion.Map == nil {
		d.mu.Unlock()
		t.Fatalf("no completion overlay")
	}
	vdURI := setup.Completion.Doc.URI
	hits := setup.Completion.Map.MappedRanges(sourcemap.Range{Start: nStart, End: nStart + 1}, sourcemap.CapCompletion, false)
	d.mu.Unlock()
	if len(hits) == 0 {
		t.Fatalf("declaration does not map into the overlay")
	}

	id := c.request("completionItem/resolve", completionItem{
		Label: "n",
		Data: &completionData{
			URI: uri,
			Doc: vdURI,
			Item: engine.CompletionItem{
				Label:        "n",
				NeedsResolve: true,
				Edits:        []engine.TextEdit{{Range: hits[0].Range, NewText: "count"}},
			},
		},
	})
	resp := c.awaitResponse(id)
	var resolved completionItem
	if err := json.Unmarshal(resp.Result, &resolved); err != nil {
		t.Fatalf("resolve result: %v", err)
	}
	if resolved.Detail != "let n: number" {
		t.Errorf("detail = %q, want engine-resolved detail", resolved.Detail)
	}
	if resolved.Data != nil {
		t.Errorf("resolved item still carries the data payload")
	}
	if resolved.TextEdit == nil {
		t.Fatalf("no text edit on resolved item")
	}
	declLine := strings.Count(testComponent[:strings.Index(testComponent, "let n")], "\n")
	want := lspRange{Start: position{Line: declLine, Character: 4}, End: position{Line: declLine, Character: 5}}
	if resolved.TextEdit.Range != want {
		t.Errorf("edit range = %+v, want %+v", resolved.TextEdit.Range, want)
	}
	if resolved.TextEdit.NewText != "count" {
		t.Errorf("edit text = %q, want %q", resolved.TextEdit.NewText, "count")
	}

	consulted := false
	for _, call := range script.Calls() {
		if strings.HasPrefix(call, "resolve:") && strings.Contains(call, vdoc.SuffixScriptCompletion) {
			consulted = true
		}
	}
	if !consulted {
		t.Errorf("engine resolve never consulted: %v", script.Calls())
	}
	c.shutdownAndExit()
}

func TestServerDefinitionFromTemplateOccurrence(t *testing.T) {
	c := startServer(t, &testkit.FakeScriptEngine{})
	c.initialize()

	uri := "file:///ws/App.sfc"
	c.openDoc(uri, testComponent)

	// Позиция на `n` внутри {{ n }} — первая строка документа
	nOff := strings.Index(testComponent, "{{ n") + 3
	id := c.request("textDocument/definition", definitionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: 0, Character: nOff},
	})
	resp := c.awaitResponse(id)
	var locs []location
	if err := json.Unmarshal(resp.Result, &locs); err != nil {
		t.Fatalf("definition result: %v", err)
	}
	if len(locs) == 0 {
		t.Fatalf("no definition locations")
	}

	declLine := strings.Count(testComponent[:strings.Index(testComponent, "let n")], "\n")
	got := locs[0]
	if got.URI != uri {
		t.Errorf("definition uri = %s, want %s", got.URI, uri)
	}
	if got.Range.Start.Line != declLine || got.Range.Start.Character != 4 {
		t.Errorf("definition at %d:%d, want %d:4", got.Range.Start.Line, got.Range.Start.Character, declLine)
	}
	c.shutdownAndExit()
}

func TestServerSelectionRangeWidensBySection(t *testing.T) {
	c := startServer(t, &testkit.FakeScriptEngine{})
	c.initialize()

	uri := "file:///ws/App.sfc"
	c.openDoc(uri, testComponent)

	// Позиция внутри шаблонного контента
	id := c.request("textDocument/selectionRange", selectionRangeParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Positions:    []position{{Line: 0, Character: 12}},
	})
	resp := c.awaitResponse(id)
	var ranges []selectionRange
	if err := json.Unmarshal(resp.Result, &ranges); err != nil {
		t.Fatalf("selectionRange result: %v", err)
	}
	if len(ranges) != 1 {
		t.Fatalf("got %d chains, want 1", len(ranges))
	}
	steps := 0
	for cur := &ranges[0]; cur != nil; cur = cur.Parent {
		steps++
	}
	if steps < 2 {
		t.Errorf("selection chain has %d steps, want at least content and section", steps)
	}
	c.shutdownAndExit()
}

func TestServerDidChangeReplacesText(t *testing.T) {
	c := startServer(t, &testkit.FakeScriptEngine{})
	c.initialize()

	uri := "file:///ws/App.sfc"
	c.openDoc(uri, "<template><p>hi</p></template>\n")
	c.awaitPublish(uri, func(p publishDiagnosticsParams) bool {
		for _, d := range p.Diagnostics {
			if d.Code == "SFC1001" {
				return true
			}
		}
		return false
	})

	// Полная замена текста добавляет script setup; подсказка должна уйти
	c.notify("textDocument/didChange", didChangeTextDocumentParams{
		TextDocument:   versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{Text: testComponent}},
	})
	c.awaitPublish(uri, func(p publishDiagnosticsParams) bool {
		for _, d := range p.Diagnostics {
			if d.Code == "SFC1001" {
				return false
			}
		}
		return true
	})
	c.shutdownAndExit()
}
