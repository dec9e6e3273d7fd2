package diagnostics

import (
	"context"
	"strings"
	"testing"
	"time"

	"sfcls/internal/diag"
	"sfcls/internal/engine"
	"sfcls/internal/sfc"
	"sfcls/internal/source"
	"sfcls/internal/testkit"
	"sfcls/internal/vdoc"
)

const sample = "<template><p>{{ n }}</p></template>\n<script setup>\nlet n = 1\n</script>\n<style>\n.a {}\n</style>\n"

func newTestEngine(t *testing.T, text string, script *testkit.FakeScriptEngine, markup *testkit.FakeMarkupEngine, style *testkit.FakeStyleEngine) (*Engine, source.DocID) {
	t.Helper()
	if script == nil {
		script = &testkit.FakeScriptEngine{}
	}
	if markup == nil {
		markup = &testkit.FakeMarkupEngine{}
	}
	if style == nil {
		style = &testkit.FakeStyleEngine{}
	}
	docs := source.NewDocSet()
	id := docs.Add("App.sfc", []byte(text), 0)

	f := sfc.New("App.sfc", script, vdoc.DialectHTML)
	scriptChanged, tmplChanged, err := f.Update(text)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	e := NewEngine(f, id, script, markup, style, 0)
	e.NoteChange(scriptChanged, tmplChanged)
	return e, id
}

func docLocal(start, end int) source.Span {
	return source.Span{Start: uint32(start), End: uint32(end)}
}

func TestRunScriptFamilyFirst(t *testing.T) {
	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if kind != engine.KindSemantic || !strings.HasSuffix(doc.URI, vdoc.SuffixScript) {
				return nil
			}
			idx := strings.Index(doc.Text, "n = 1")
			return []diag.Diagnostic{diag.NewError(diag.ScriptSemantic, docLocal(idx, idx+1), "n is unused here")}
		},
	}
	e, id := newTestEngine(t, sample, script, nil, nil)

	var batches [][]diag.Diagnostic
	err := e.Run(context.Background(), func(ds []diag.Diagnostic) {
		cp := make([]diag.Diagnostic, len(ds))
		copy(cp, ds)
		batches = append(batches, cp)
	}, nil, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 3 always + 4 script family + 5 template family.
	if len(batches) != 12 {
		t.Fatalf("got %d batches, want 12", len(batches))
	}
	// The first batch that includes a script-family producer carries the
	// script diagnostic.
	got := batches[3]
	if len(got) != 1 {
		t.Fatalf("first script-family batch has %d diagnostics, want 1", len(got))
	}
	d := got[0]
	if d.Primary.Doc != id {
		t.Errorf("diagnostic doc = %d, want %d", d.Primary.Doc, id)
	}
	if want := strings.Index(sample, "n = 1"); int(d.Primary.Start) != want {
		t.Errorf("diagnostic at %d, want %d", d.Primary.Start, want)
	}
}

func TestRunTemplateFamilyFirstAfterTemplateEdit(t *testing.T) {
	script := &testkit.FakeScriptEngine{}
	e, _ := newTestEngine(t, sample, script, nil, nil)
	e.NoteChange(false, true)

	if err := e.Run(context.Background(), nil, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := script.Calls()
	var order []string
	for _, c := range calls {
		if strings.HasPrefix(c, "diagnostics:") {
			order = append(order, c)
		}
	}
	if len(order) == 0 {
		t.Fatalf("no diagnostics calls recorded")
	}
	if !strings.Contains(order[0], vdoc.SuffixTemplateScript) {
		t.Errorf("first script call %q is not template family", order[0])
	}
}

func TestRunNoBatchAfterCancellation(t *testing.T) {
	e, _ := newTestEngine(t, sample, nil, nil, nil)

	batches := 0
	cancelled := false
	err := e.Run(context.Background(), func([]diag.Diagnostic) {
		if cancelled {
			t.Fatalf("onBatch invoked after cancellation")
		}
		batches++
	}, func() bool {
		if batches >= 2 {
			cancelled = true
		}
		return cancelled
	}, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if batches != 2 {
		t.Errorf("got %d batches, want 2", batches)
	}
}

func TestRunDedupAcrossProducers(t *testing.T) {
	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if !strings.HasSuffix(doc.URI, vdoc.SuffixScript) {
				return nil
			}
			if kind == engine.KindSuggestion {
				return nil
			}
			// Semantic and syntactic report the identical problem.
			idx := strings.Index(doc.Text, "n = 1")
			return []diag.Diagnostic{diag.NewError(diag.ScriptSemantic, docLocal(idx, idx+1), "duplicate report")}
		},
	}
	e, _ := newTestEngine(t, sample, script, nil, nil)

	var last []diag.Diagnostic
	if err := e.Run(context.Background(), func(ds []diag.Diagnostic) { last = ds }, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	count := 0
	for _, d := range last {
		if d.Message == "duplicate report" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate collapsed to %d entries, want 1", count)
	}
}

func TestRunUnusedTeleportRelocation(t *testing.T) {
	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if kind != engine.KindSuggestion || !strings.HasSuffix(doc.URI, vdoc.SuffixTemplateScript) {
				return nil
			}
			// Unused-symbol report on the import-name occurrence.
			idx := strings.Index(doc.Text, "{ n }") + 2
			d := diag.New(diag.SevHint, diag.ScriptUnused, docLocal(idx, idx+1), "n is declared but never read")
			return []diag.Diagnostic{d.WithTag(diag.TagUnnecessary)}
		},
	}
	e, _ := newTestEngine(t, sample, script, nil, nil)

	var last []diag.Diagnostic
	if err := e.Run(context.Background(), func(ds []diag.Diagnostic) { last = ds }, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var hits []diag.Diagnostic
	for _, d := range last {
		if strings.Contains(d.Message, "never read") {
			hits = append(hits, d)
		}
	}
	if len(hits) != 1 {
		t.Fatalf("got %d unused diagnostics, want 1", len(hits))
	}
	// Relocated to the declaration in <script setup>, not the template usage.
	declAt := uint32(strings.Index(sample, "n = 1"))
	if hits[0].Primary.Start != declAt {
		t.Errorf("unused diagnostic at %d, want declaration at %d", hits[0].Primary.Start, declAt)
	}
}

func TestRunHeldFamilyMergedNotStreamed(t *testing.T) {
	e, _ := newTestEngine(t, sample, nil, nil, nil)
	e.NoteChange(true, false)

	batches := 0
	if err := e.Run(context.Background(), func([]diag.Diagnostic) { batches++ }, nil, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 3 always + 4 script family + one merged delivery for the held family.
	if batches != 8 {
		t.Errorf("got %d batches, want 8", batches)
	}
}

func TestRunCostOrdering(t *testing.T) {
	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if kind == engine.KindSemantic && strings.HasSuffix(doc.URI, vdoc.SuffixScript) {
				time.Sleep(30 * time.Millisecond)
			}
			return nil
		},
	}
	e, _ := newTestEngine(t, sample, script, nil, nil)

	if err := e.Run(context.Background(), nil, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := e.Run(context.Background(), nil, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Second run: the expensive semantic pass sank behind the cheap ones.
	var scriptCalls []string
	for _, c := range script.Calls() {
		if strings.HasPrefix(c, "diagnostics:App.sfc"+vdoc.SuffixScript+":") {
			scriptCalls = append(scriptCalls, strings.TrimPrefix(c, "diagnostics:App.sfc"+vdoc.SuffixScript+":"))
		}
	}
	if len(scriptCalls) < 8 {
		t.Fatalf("got %d script calls, want 8", len(scriptCalls))
	}
	secondRun := scriptCalls[4:8]
	if secondRun[2] != "semantic" {
		t.Errorf("second run order = %v, want semantic last of the trio", secondRun)
	}
}

func TestRunScriptMissing(t *testing.T) {
	src := "<template><p>hi</p></template>\n"
	e, id := newTestEngine(t, src, nil, nil, nil)

	var last []diag.Diagnostic
	if err := e.Run(context.Background(), func(ds []diag.Diagnostic) { last = ds }, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(last) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(last))
	}
	d := last[0]
	if d.Code != diag.BlockScriptMissing {
		t.Errorf("code = %v", d.Code)
	}
	if d.Primary.Doc != id || d.Primary.Start != 0 {
		t.Errorf("diagnostic span = %v", d.Primary)
	}
}

func TestRunTemplateFallbackRelabelsUnmappedDiagnostics(t *testing.T) {
	markup := &testkit.FakeMarkupEngine{
		Diags: []diag.Diagnostic{diag.NewError(diag.TmplCompileError, docLocal(9000, 9001), "unclosed element")},
	}
	e, id := newTestEngine(t, sample, nil, markup, nil)

	var last []diag.Diagnostic
	if err := e.Run(context.Background(), func(ds []diag.Diagnostic) { last = ds }, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var hit *diag.Diagnostic
	for i := range last {
		if strings.HasPrefix(last[i].Message, "unclosed element") {
			hit = &last[i]
		}
	}
	if hit == nil {
		t.Fatalf("unmapped diagnostic dropped: %v", last)
	}
	if hit.Code != diag.TmplUnmappedError {
		t.Errorf("code = %v, want %v", hit.Code, diag.TmplUnmappedError)
	}
	if !strings.Contains(hit.Message, "\n") {
		t.Errorf("fallback message carries no snippet: %q", hit.Message)
	}
	// Parked on the whole template content since the position is lost.
	tmplEnd := uint32(strings.Index(sample, "</template>"))
	if hit.Primary.Doc != id || hit.Primary.Start != uint32(len("<template>")) || hit.Primary.End != tmplEnd {
		t.Errorf("fallback span = %v", hit.Primary)
	}
}

func TestRunUncodedScriptDiagnosticsCategorized(t *testing.T) {
	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if kind != engine.KindSyntactic || !strings.HasSuffix(doc.URI, vdoc.SuffixScript) {
				return nil
			}
			idx := strings.Index(doc.Text, "n = 1")
			return []diag.Diagnostic{diag.New(diag.SevError, diag.UnknownCode, docLocal(idx, idx+1), "unexpected token")}
		},
	}
	e, _ := newTestEngine(t, sample, script, nil, nil)

	var last []diag.Diagnostic
	if err := e.Run(context.Background(), func(ds []diag.Diagnostic) { last = ds }, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, d := range last {
		if d.Message == "unexpected token" {
			found = true
			if d.Code != diag.ScriptSyntactic {
				t.Errorf("code = %v, want %v", d.Code, diag.ScriptSyntactic)
			}
		}
	}
	if !found {
		t.Fatalf("syntactic diagnostic missing: %v", last)
	}
}

func TestRunProducerFailureDegrades(t *testing.T) {
	style := &testkit.FakeStyleEngine{Err: context.DeadlineExceeded}
	e, _ := newTestEngine(t, sample, nil, nil, style)

	var last []diag.Diagnostic
	if err := e.Run(context.Background(), func(ds []diag.Diagnostic) { last = ds }, nil, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(last) != 0 {
		t.Errorf("failed producer leaked diagnostics: %v", last)
	}
}
