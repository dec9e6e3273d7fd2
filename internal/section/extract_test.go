package section

import (
	"testing"
)

const sample = `<template>
  <div>{{ greeting }}</div>
</template>

<script setup>
let greeting = "hi"
</script>

<style scoped>
div { color: red; }
</style>

<style lang="scss">
$x: 1;
</style>

<docs>
Some custom block.
</docs>
`

func TestExtractKindsAndLangs(t *testing.T) {
	s := Extract([]byte(sample))

	if s.Template == nil {
		t.Fatal("expected template section")
	}
	if s.Template.Lang != DefaultTemplateLang {
		t.Errorf("template lang = %q, want %q", s.Template.Lang, DefaultTemplateLang)
	}
	if s.ScriptSetup == nil {
		t.Fatal("expected script-setup section")
	}
	if s.Script != nil {
		t.Error("did not expect a plain script section")
	}
	if len(s.Styles) != 2 {
		t.Fatalf("expected 2 style sections, got %d", len(s.Styles))
	}
	if s.Styles[0].Lang != DefaultStyleLang {
		t.Errorf("style[0] lang = %q, want %q", s.Styles[0].Lang, DefaultStyleLang)
	}
	if _, ok := s.Styles[0].Attrs["scoped"]; !ok {
		t.Error("style[0] should carry the scoped attr")
	}
	if s.Styles[1].Lang != "scss" {
		t.Errorf("style[1] lang = %q, want scss", s.Styles[1].Lang)
	}
	if len(s.Customs) != 1 || s.Customs[0].Tag != "docs" {
		t.Fatalf("expected one custom 'docs' block, got %+v", s.Customs)
	}
}

func TestExtractByteRanges(t *testing.T) {
	src := []byte(sample)
	s := Extract(src)

	for _, sec := range s.All() {
		got := string(src[sec.Start:sec.End])
		if got != sec.Content {
			t.Errorf("%s: byte range [%d,%d) yields %q, content is %q",
				sec.Tag, sec.Start, sec.End, got, sec.Content)
		}
	}

	want := "\nlet greeting = \"hi\"\n"
	if s.ScriptSetup.Content != want {
		t.Errorf("script-setup content = %q, want %q", s.ScriptSetup.Content, want)
	}
}

func TestExtractIdempotent(t *testing.T) {
	first := Extract([]byte(sample))
	second := Extract([]byte(sample))

	a, b := first.All(), second.All()
	if len(a) != len(b) {
		t.Fatalf("section count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Start != b[i].Start || a[i].End != b[i].End || a[i].Content != b[i].Content {
			t.Errorf("section %d differs between extractions: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestIgnoreMarker(t *testing.T) {
	src := `<template><p>x</p></template>
<!-- sfcls-ignore -->
<script>
bad code here
</script>
<style>p{}</style>
`
	s := Extract([]byte(src))
	if s.Script == nil || !s.Script.Ignore {
		t.Error("expected the script block after the marker to be ignored")
	}
	if s.Template.Ignore {
		t.Error("template before the marker must not be ignored")
	}
	if len(s.Styles) != 1 || s.Styles[0].Ignore {
		t.Error("style after the ignored block must not be ignored")
	}
}

func TestNestedTemplates(t *testing.T) {
	src := `<template>
  <template v-if="a"><b>inner</b></template>
</template>
<script>let a = 1</script>`
	s := Extract([]byte(src))
	if s.Template == nil {
		t.Fatal("expected template")
	}
	if want := "\n  <template v-if=\"a\"><b>inner</b></template>\n"; s.Template.Content != want {
		t.Errorf("nested template content = %q, want %q", s.Template.Content, want)
	}
	if s.Script == nil || s.Script.Content != "let a = 1" {
		t.Errorf("script after nested template parsed wrong: %+v", s.Script)
	}
}

func TestMalformedNeverFails(t *testing.T) {
	cases := []string{
		"",
		"<template>",
		"<template><div></template",
		"<script",
		"< 1 2 3",
		"<style>unclosed",
		"<!-- dangling comment",
	}
	for _, src := range cases {
		s := Extract([]byte(src)) // must not panic
		_ = s.All()
	}

	// Unterminated block runs to end of input.
	s := Extract([]byte("<script>let x = 1"))
	if s.Script == nil || s.Script.Content != "let x = 1" {
		t.Errorf("unterminated script: %+v", s.Script)
	}
}

func TestScriptRawText(t *testing.T) {
	// A string containing "</script" lookalikes inside other blocks must not
	// confuse raw-text scanning of the real block boundaries.
	src := `<script>let s = "<div>"</script><style>a{content:"<script>"}</style>`
	s := Extract([]byte(src))
	if s.Script == nil || s.Script.Content != `let s = "<div>"` {
		t.Errorf("script content = %+v", s.Script)
	}
	if len(s.Styles) != 1 || s.Styles[0].Content != `a{content:"<script>"}` {
		t.Errorf("style content = %+v", s.Styles)
	}
}

func TestMergePreservesSlotIdentity(t *testing.T) {
	prev := Extract([]byte(sample))
	tpl, setup := prev.Template, prev.ScriptSetup
	style0, style1 := prev.Styles[0], prev.Styles[1]

	edited := `<template>
  <div>{{ greeting }}!</div>
</template>

<script setup>
let greeting = "hi"
</script>

<style scoped>
div { color: blue; }
</style>
`
	next := Extract([]byte(edited))
	merged := Merge(prev, next)

	if merged.Template != tpl {
		t.Error("template slot identity lost")
	}
	if merged.ScriptSetup != setup {
		t.Error("script-setup slot identity lost")
	}
	if len(merged.Styles) != 1 {
		t.Fatalf("expected surplus style slot dropped, got %d", len(merged.Styles))
	}
	if merged.Styles[0] != style0 {
		t.Error("style[0] slot identity lost")
	}
	_ = style1 // dropped slot

	if merged.Styles[0].Content != "\ndiv { color: blue; }\n" {
		t.Errorf("style[0] content not patched: %q", merged.Styles[0].Content)
	}
	if len(merged.Customs) != 0 {
		t.Errorf("custom block should be dropped, got %d", len(merged.Customs))
	}
}

func TestMergeAppendsNewSlots(t *testing.T) {
	prev := Extract([]byte(`<style>a{}</style>`))
	next := Extract([]byte(`<style>a{}</style><style>b{}</style>`))
	merged := Merge(prev, next)
	if len(merged.Styles) != 2 {
		t.Fatalf("expected appended style slot, got %d", len(merged.Styles))
	}
	if merged.Styles[1].Content != "b{}" {
		t.Errorf("appended slot content = %q", merged.Styles[1].Content)
	}
}
