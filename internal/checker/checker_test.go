package checker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sfcls/internal/diag"
	"sfcls/internal/diskcache"
	"sfcls/internal/engine"
	"sfcls/internal/observ"
	"sfcls/internal/project"
	"sfcls/internal/source"
	"sfcls/internal/testkit"
	"sfcls/internal/vdoc"
)

const sampleComponent = "<template><p>{{ n }}</p></template>\n<script setup>\nlet n = 1\n</script>\n"

func writeComponent(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func docLocal(start, end uint32) source.Span {
	return source.Span{Start: start, End: end}
}

func baseOptions(script *testkit.FakeScriptEngine) Options {
	if script == nil {
		script = &testkit.FakeScriptEngine{}
	}
	return Options{
		Config: project.Default(),
		Script: script,
		Markup: &testkit.FakeMarkupEngine{},
		Style:  &testkit.FakeStyleEngine{},
	}
}

func TestCheckDirReportsScriptDiagnostics(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "a.sfc", sampleComponent)
	writeComponent(t, dir, "b.sfc", "<template><p>ok</p></template>\n<script setup>\nlet m = 2\n</script>\n")

	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if kind != engine.KindSemantic || !strings.HasSuffix(doc.URI, vdoc.SuffixScript) {
				return nil
			}
			idx := strings.Index(doc.Text, "n = 1")
			if idx < 0 {
				return nil
			}
			start, end := uint32(idx), uint32(idx+1)
			return []diag.Diagnostic{diag.NewError(diag.ScriptSemantic, docLocal(start, end), "n is never assigned")}
		},
	}

	docs, results, err := CheckDir(context.Background(), dir, baseOptions(script))
	if err != nil {
		t.Fatalf("CheckDir: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	// Результаты идут в отсортированном порядке путей.
	if !strings.HasSuffix(results[0].Path, "a.sfc") || !strings.HasSuffix(results[1].Path, "b.sfc") {
		t.Fatalf("unexpected result order: %s, %s", results[0].Path, results[1].Path)
	}
	if len(results[0].Diags) != 1 {
		t.Fatalf("a.sfc got %d diagnostics, want 1", len(results[0].Diags))
	}
	d := results[0].Diags[0]
	if d.Primary.Doc != results[0].Doc {
		t.Errorf("diagnostic doc = %d, want %d", d.Primary.Doc, results[0].Doc)
	}
	if want := uint32(strings.Index(sampleComponent, "n = 1")); d.Primary.Start != want {
		t.Errorf("diagnostic at %d, want %d", d.Primary.Start, want)
	}
	if doc := docs.Get(results[0].Doc); doc == nil || !strings.HasSuffix(doc.URI, "a.sfc") {
		t.Errorf("doc set does not resolve a.sfc")
	}
	if len(results[1].Diags) != 0 {
		t.Errorf("b.sfc got %d diagnostics, want 0", len(results[1].Diags))
	}
}

func TestCheckDirScriptMissingHint(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "bare.sfc", "<template><p>hi</p></template>\n")

	_, results, err := CheckDir(context.Background(), dir, baseOptions(nil))
	if err != nil {
		t.Fatalf("CheckDir: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	var found bool
	for _, d := range results[0].Diags {
		if d.Code == diag.BlockScriptMissing {
			found = true
			if d.Severity != diag.SevHint {
				t.Errorf("severity = %v, want hint", d.Severity)
			}
		}
	}
	if !found {
		t.Errorf("missing-script hint not reported: %v", results[0].Diags)
	}
}

func TestCheckDirCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "a.sfc", sampleComponent)

	cache, err := diskcache.OpenAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}

	script := &testkit.FakeScriptEngine{
		DiagsFor: func(doc *vdoc.Document, kind engine.DiagnosticKind) []diag.Diagnostic {
			if kind != engine.KindSemantic || !strings.HasSuffix(doc.URI, vdoc.SuffixScript) {
				return nil
			}
			idx := strings.Index(doc.Text, "n = 1")
			return []diag.Diagnostic{diag.NewError(diag.ScriptSemantic, docLocal(uint32(idx), uint32(idx+1)), "n is never assigned")}
		},
	}

	opts := baseOptions(script)
	opts.Cache = cache

	_, first, err := CheckDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("first CheckDir: %v", err)
	}
	if first[0].FromCache {
		t.Fatalf("first run unexpectedly served from cache")
	}

	_, second, err := CheckDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("second CheckDir: %v", err)
	}
	if !second[0].FromCache {
		t.Fatalf("second run not served from cache")
	}
	if len(second[0].Diags) != len(first[0].Diags) {
		t.Fatalf("cached diags = %d, want %d", len(second[0].Diags), len(first[0].Diags))
	}
	for i := range first[0].Diags {
		a, b := first[0].Diags[i], second[0].Diags[i]
		if a.Message != b.Message || a.Code != b.Code || a.Primary.Start != b.Primary.Start || a.Primary.End != b.Primary.End {
			t.Errorf("cached diag %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestCheckDirCacheMissAfterEdit(t *testing.T) {
	dir := t.TempDir()
	path := writeComponent(t, dir, "a.sfc", sampleComponent)

	cache, err := diskcache.OpenAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	opts := baseOptions(nil)
	opts.Cache = cache

	if _, _, err := CheckDir(context.Background(), dir, opts); err != nil {
		t.Fatalf("first CheckDir: %v", err)
	}
	if err := os.WriteFile(path, []byte(sampleComponent+"<style>.a {}</style>\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	_, results, err := CheckDir(context.Background(), dir, opts)
	if err != nil {
		t.Fatalf("second CheckDir: %v", err)
	}
	if results[0].FromCache {
		t.Fatalf("edited file served from stale cache")
	}
}

func TestCheckDirProgress(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "a.sfc", sampleComponent)
	writeComponent(t, dir, "b.sfc", sampleComponent)
	writeComponent(t, dir, "c.sfc", sampleComponent)

	var events []Event
	opts := baseOptions(nil)
	opts.Jobs = 2
	opts.Progress = func(ev Event) { events = append(events, ev) }

	if _, _, err := CheckDir(context.Background(), dir, opts); err != nil {
		t.Fatalf("CheckDir: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d progress events, want 3", len(events))
	}
	for i, ev := range events {
		if ev.Index != i+1 {
			t.Errorf("event %d has index %d", i, ev.Index)
		}
		if ev.Total != 3 {
			t.Errorf("event %d has total %d, want 3", i, ev.Total)
		}
	}
}

func TestCheckDirRecordsPhaseTimings(t *testing.T) {
	dir := t.TempDir()
	writeComponent(t, dir, "a.sfc", sampleComponent)
	writeComponent(t, dir, "b.sfc", sampleComponent)

	tm := observ.NewTimer()
	opts := baseOptions(nil)
	opts.Timer = tm

	if _, _, err := CheckDir(context.Background(), dir, opts); err != nil {
		t.Fatalf("CheckDir: %v", err)
	}

	report := tm.Report()
	var names []string
	for _, p := range report.Phases {
		names = append(names, p.Name)
	}
	want := []string{"discover", "load", "check"}
	if len(names) != len(want) {
		t.Fatalf("phases = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("phases = %v, want %v", names, want)
		}
	}
	if report.Phases[0].Note != "2 files" {
		t.Errorf("discover note = %q, want %q", report.Phases[0].Note, "2 files")
	}
	if !strings.Contains(tm.Summary(), "check") {
		t.Errorf("summary missing check phase: %q", tm.Summary())
	}
}

func TestCheckDirEmpty(t *testing.T) {
	_, results, err := CheckDir(context.Background(), t.TempDir(), baseOptions(nil))
	if err != nil {
		t.Fatalf("CheckDir: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}
