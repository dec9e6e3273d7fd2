package vdoc

import (
	"strings"
	"testing"

	"sfcls/internal/sourcemap"
)

func setupAndLower(t *testing.T, src string, cross *CrossRef) (*ScriptSetupResult, *TemplateScriptResult, string) {
	t.Helper()
	secs := sectionsFor(t, src)
	setup, err := NewScriptSetupGen("App.sfc").Update(secs)
	if err != nil {
		t.Fatalf("setup Update: %v", err)
	}
	tmpl, err := NewTemplateScriptGen("App.sfc").Update(secs, cross, setup.Bindings)
	if err != nil {
		t.Fatalf("template Update: %v", err)
	}
	return setup, tmpl, src
}

func TestTemplateScriptLowering(t *testing.T) {
	src := "<template>\n<MyWidget :title=\"heading\" @click=\"onClick\"/>\n<p>{{ heading }}</p>\n</template>\n<script setup>\nlet heading = \"hi\"\nlet onClick = () => {}\n</script>\n"
	cross := &CrossRef{Components: []string{"MyWidget"}}
	_, tmpl, _ := setupAndLower(t, src, cross)

	if !tmpl.Script.Present() {
		t.Fatalf("script artifact absent")
	}
	text := tmpl.Script.Doc.Text
	for _, want := range []string{
		"__resolveComponent(\"MyWidget\");",
		"__prop(\"MyWidget\", \"title\", ((heading)));",
		"__on(\"MyWidget\", \"click\", ((onClick)));",
		"((heading));",
		"__element(\"p\");",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("lowered script missing %q:\n%s", want, text)
		}
	}
	if tmpl.Script.Doc.URI != "App.sfc"+SuffixTemplateScript {
		t.Errorf("script URI = %q", tmpl.Script.Doc.URI)
	}
}

func TestTemplateScriptMapsTagAndExpr(t *testing.T) {
	src := "<template><MyWidget :title=\"heading\"/></template>\n<script setup>\nlet heading = \"hi\"\n</script>\n"
	cross := &CrossRef{Components: []string{"MyWidget"}}
	_, tmpl, file := setupAndLower(t, src, cross)

	text := tmpl.Script.Doc.Text
	m := tmpl.Script.Map

	// The tag occurrence inside __resolveComponent maps back to the tag in
	// the component file.
	genTag := strings.Index(text, "__resolveComponent(\"MyWidget\"") + len("__resolveComponent(\"")
	hits := m.SourceRanges(rng(uint32(genTag), uint32(genTag+len("MyWidget"))), sourcemap.CapDefinition, false)
	if len(hits) != 1 {
		t.Fatalf("got %d tag hits, want 1", len(hits))
	}
	if got := file[hits[0].Range.Start:hits[0].Range.End]; got != "MyWidget" {
		t.Errorf("tag maps to %q", got)
	}

	// The bound expression maps back with full capabilities.
	genExpr := strings.Index(text, "((heading))") + 2
	hits = m.SourceRanges(rng(uint32(genExpr), uint32(genExpr+len("heading"))), sourcemap.CapDiagnostic, false)
	if len(hits) != 1 {
		t.Fatalf("got %d expr hits, want 1", len(hits))
	}
	if got := file[hits[0].Range.Start:hits[0].Range.End]; got != "heading" {
		t.Errorf("expr maps to %q", got)
	}
}

func TestTemplateScriptTeleport(t *testing.T) {
	src := "<template><p>{{ heading }}</p></template>\n<script setup>\nlet heading = \"hi\"\n</script>\n"
	setup, tmpl, _ := setupAndLower(t, src, &CrossRef{})

	text := tmpl.Script.Doc.Text
	if !strings.Contains(text, "import { heading } from \"./App.sfc.__script\";") {
		t.Fatalf("missing import preamble:\n%s", text)
	}

	// The import-name occurrence teleports to the declaration in the
	// generated setup script.
	impStart := strings.Index(text, "heading")
	spans := tmpl.Teleport.FindSpans(rng(uint32(impStart), uint32(impStart+len("heading"))))
	if len(spans) != 1 {
		t.Fatalf("got %d teleport spans, want 1", len(spans))
	}
	want := setup.Bindings[0].Generated
	if spans[0] != want {
		t.Errorf("teleport lands at %v, want %v", spans[0], want)
	}

	// Expression occurrences are shadow entries: never a primary result.
	exprStart := strings.Index(text, "((heading))") + 2
	spans = tmpl.Teleport.FindSpans(rng(uint32(exprStart), uint32(exprStart+len("heading"))))
	if len(spans) != 0 {
		t.Errorf("shadow occurrence teleported as primary: %v", spans)
	}
}

func TestTemplateScriptImportNamesCarryNoDiagnostics(t *testing.T) {
	src := "<template><p>{{ heading }}</p></template>\n<script setup>\nlet heading = \"hi\"\n</script>\n"
	_, tmpl, _ := setupAndLower(t, src, &CrossRef{})

	text := tmpl.Script.Doc.Text
	impStart := strings.Index(text, "heading")
	hits := tmpl.Script.Map.SourceRanges(rng(uint32(impStart), uint32(impStart+len("heading"))), sourcemap.CapDiagnostic, true)
	if len(hits) != 0 {
		t.Errorf("import name remaps diagnostics directly: %v", hits)
	}
}

func TestTemplateScriptMemoization(t *testing.T) {
	src := "<template><p>{{ n }}</p></template>\n<script setup>\nlet n = 1\n</script>\n"
	secs := sectionsFor(t, src)
	setup, err := NewScriptSetupGen("App.sfc").Update(secs)
	if err != nil {
		t.Fatalf("setup Update: %v", err)
	}
	gen := NewTemplateScriptGen("App.sfc")

	cross := &CrossRef{Components: []string{"A"}}
	r1, err := gen.Update(secs, cross, setup.Bindings)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	r2, err := gen.Update(secs, &CrossRef{Components: []string{"A"}}, setup.Bindings)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if r1.Script.Doc != r2.Script.Doc {
		t.Errorf("identical inputs regenerated the document")
	}

	// A new component name invalidates the memo even though the text may not
	// change for this template.
	r3, err := gen.Update(secs, &CrossRef{Components: []string{"A", "B"}}, setup.Bindings)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if r3.Script.Doc.Text != r1.Script.Doc.Text {
		t.Errorf("unrelated component changed the lowered text")
	}
}

func TestTemplateScriptCSSArtifact(t *testing.T) {
	src := "<template><div class=\"card wide\" :class=\"active ? 'on' : 'off'\"/></template>\n"
	_, tmpl, file := setupAndLower(t, src, &CrossRef{})

	if !tmpl.CSS.Present() {
		t.Fatalf("css artifact absent")
	}
	text := tmpl.CSS.Doc.Text
	for _, want := range []string{".card {}", ".wide {}", ".on {}", ".off {}"} {
		if !strings.Contains(text, want) {
			t.Errorf("css artifact missing %q:\n%s", want, text)
		}
	}

	// Class names map back to their occurrence in the component file.
	genCard := strings.Index(text, "card")
	hits := tmpl.CSS.Map.SourceRanges(rng(uint32(genCard), uint32(genCard+len("card"))), sourcemap.CapReference, false)
	if len(hits) != 1 {
		t.Fatalf("got %d hits for card, want 1", len(hits))
	}
	if got := file[hits[0].Range.Start:hits[0].Range.End]; got != "card" {
		t.Errorf("card maps to %q", got)
	}
}
