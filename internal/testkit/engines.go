package testkit

import (
	"context"
	"strings"
	"sync"
	"time"

	"sfcls/internal/diag"
	"sfcls/internal/engine"
	"sfcls/internal/sourcemap"
	"sfcls/internal/vdoc"
)

func rngAt(off uint32) sourcemap.Range {
	return sourcemap.Range{Start: off, End: off}
}

// FakeScriptEngine implements engine.ScriptEngine for tests. Behavior is
// configured per field; everything unset returns empty results. Call order
// is recorded so scheduling tests can assert producer ordering.
type FakeScriptEngine struct {
	Version uint64

	// Names answers sentinel-marker completion queries on a main document.
	Names map[vdoc.Marker][]string

	// DiagsFor answers Diagnostics calls. Nil means no diagnostics.
	DiagsFor func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic

	// Resolve answers ResolveCompletion calls. Nil clears NeedsResolve
	// and returns the item otherwise untouched.
	Resolve func(doc *vdoc.Document, item engine.CompletionItem) engine.CompletionItem

	// Delay is slept on every Diagnostics call, for cost-ordering tests.
	Delay time.Duration

	// Err, when set, is returned by every method that can fail.
	Err error

	mu    sync.Mutex
	calls []string
}

var _ engine.ScriptEngine = (*FakeScriptEngine)(nil)

func (f *FakeScriptEngine) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

// Calls returns the recorded call log: "method:uri:detail" entries in order.
func (f *FakeScriptEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *FakeScriptEngine) Diagnostics(ctx context.Context, doc *vdoc.Document, kind engine.DiagnosticKind) ([]diag.Diagnostic, error) {
	f.record("diagnostics:" + doc.URI + ":" + kind.String())
	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.DiagsFor == nil {
		return nil, nil
	}
	return f.DiagsFor(doc, kind), nil
}

func (f *FakeScriptEngine) Complete(ctx context.Context, doc *vdoc.Document, offset uint32) (engine.CompletionList, error) {
	f.record("complete:" + doc.URI)
	if f.Err != nil {
		return engine.CompletionList{}, f.Err
	}
	// Sentinel-marker queries: identify the marker by the text at the offset.
	for _, mk := range vdoc.Markers() {
		if int(offset) < len(doc.Text) && strings.HasPrefix(doc.Text[offset:], mk.Sentinel()) {
			var list engine.CompletionList
			for _, name := range f.Names[mk] {
				list.Items = append(list.Items, engine.CompletionItem{Label: name})
			}
			return list, nil
		}
	}
	return engine.CompletionList{}, nil
}

func (f *FakeScriptEngine) ResolveCompletion(ctx context.Context, doc *vdoc.Document, item engine.CompletionItem) (engine.CompletionItem, error) {
	f.record("resolve:" + doc.URI)
	if f.Err != nil {
		return item, f.Err
	}
	if f.Resolve != nil {
		return f.Resolve(doc, item), nil
	}
	item.NeedsResolve = false
	return item, nil
}

func (f *FakeScriptEngine) FindDefinition(ctx context.Context, doc *vdoc.Document, offset uint32) ([]engine.Location, error) {
	f.record("definition:" + doc.URI)
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, nil
}

func (f *FakeScriptEngine) SelectionRanges(ctx context.Context, doc *vdoc.Document, offsets []uint32) ([]engine.SelectionRange, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]engine.SelectionRange, len(offsets))
	for i, off := range offsets {
		out[i] = engine.SelectionRange{Range: rngAt(off)}
	}
	return out, nil
}

func (f *FakeScriptEngine) ProjectVersion() uint64 {
	return f.Version
}

// FakeMarkupEngine implements engine.MarkupEngine.
type FakeMarkupEngine struct {
	Diags []diag.Diagnostic
	Err   error
}

var _ engine.MarkupEngine = (*FakeMarkupEngine)(nil)

func (f *FakeMarkupEngine) Validate(ctx context.Context, doc *vdoc.Document) ([]diag.Diagnostic, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Diags, nil
}

func (f *FakeMarkupEngine) Complete(ctx context.Context, doc *vdoc.Document, offset uint32) (engine.CompletionList, error) {
	return engine.CompletionList{}, f.Err
}

func (f *FakeMarkupEngine) SelectionRanges(ctx context.Context, doc *vdoc.Document, offsets []uint32) ([]engine.SelectionRange, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]engine.SelectionRange, len(offsets))
	for i, off := range offsets {
		out[i] = engine.SelectionRange{Range: rngAt(off)}
	}
	return out, nil
}

// FakeStyleEngine implements engine.StyleEngine.
type FakeStyleEngine struct {
	Diags []diag.Diagnostic
	Err   error
}

var _ engine.StyleEngine = (*FakeStyleEngine)(nil)

func (f *FakeStyleEngine) Validate(ctx context.Context, doc *vdoc.Document) ([]diag.Diagnostic, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Diags, nil
}

func (f *FakeStyleEngine) Complete(ctx context.Context, doc *vdoc.Document, offset uint32) (engine.CompletionList, error) {
	return engine.CompletionList{}, f.Err
}
