package diagnostics

import (
	"context"

	"sfcls/internal/diag"
	"sfcls/internal/diagfmt"
	"sfcls/internal/engine"
	"sfcls/internal/sourcemap"
	"sfcls/internal/vdoc"
)

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// docAndMap is one virtual document paired with its source map, fetched
// fresh per producer run so document replacement between runs is seen.
type docAndMap struct {
	doc *vdoc.Document
	m   *sourcemap.Map
}

func (e *Engine) setupDoc() docAndMap {
	setup := e.file.Setup()
	if setup == nil || !setup.Primary.Present() {
		return docAndMap{}
	}
	return docAndMap{doc: setup.Primary.Doc, m: setup.Primary.Map}
}

func (e *Engine) templateDoc() docAndMap {
	tmpl := e.file.TemplateScript()
	if tmpl == nil || !tmpl.Script.Present() {
		return docAndMap{}
	}
	return docAndMap{doc: tmpl.Script.Doc, m: tmpl.Script.Map}
}

// runStyle validates every style document. Engine failures degrade to no
// diagnostics from this producer.
func (e *Engine) runStyle(ctx context.Context) []diag.Diagnostic {
	if e.style == nil {
		return nil
	}
	var out []diag.Diagnostic
	for _, art := range e.file.Styles() {
		if !art.Present() {
			continue
		}
		raw, err := e.style.Validate(ctx, art.Doc)
		if err != nil {
			continue
		}
		for _, d := range raw {
			if d.Code == diag.UnknownCode {
				d.Code = diag.StyleInvalid
			}
			if rd, ok := e.remap(d, art.Map); ok {
				out = append(out, rd)
			}
		}
	}
	return out
}

// runTemplateStructural validates the markup document. Remapped ends are
// trimmed of trailing whitespace; diagnostics that map nowhere fall back to
// the whole template section with a rendered snippet in the message.
func (e *Engine) runTemplateStructural(ctx context.Context) []diag.Diagnostic {
	if e.markup == nil {
		return nil
	}
	raw := e.file.TemplateRaw()
	if !raw.Present() {
		return nil
	}
	diags, err := e.markup.Validate(ctx, raw.Doc)
	if err != nil {
		return nil
	}

	secs := e.file.Sections()
	text := e.file.Text()
	var out []diag.Diagnostic
	for _, d := range diags {
		rd, ok := e.remap(d, raw.Map)
		if ok {
			for rd.Primary.End > rd.Primary.Start && isSpaceByte(text[rd.Primary.End-1]) {
				rd.Primary.End--
			}
			out = append(out, rd)
			continue
		}
		if secs.Template == nil {
			continue
		}
		snippet := diagfmt.Snippet(raw.Doc.Text, d.Primary.Start, d.Primary.End, 1)
		fd := d
		fd.Code = diag.TmplUnmappedError
		fd.Message = d.Message + "\n" + snippet
		fd.Primary.Doc = e.docID
		fd.Primary.Start, fd.Primary.End = secs.Template.ContentRange()
		out = append(out, fd)
	}
	return out
}

// runScriptMissing reports a component file that has markup but no script
// block of either flavor.
func (e *Engine) runScriptMissing(context.Context) []diag.Diagnostic {
	secs := e.file.Sections()
	if secs == nil || secs.Template == nil {
		return nil
	}
	if secs.Script != nil || secs.ScriptSetup != nil {
		return nil
	}
	d := diag.New(diag.SevHint, diag.BlockScriptMissing,
		spanOf(e.docID, secs.Template.TagStart, secs.Template.Start),
		"component has no script block")
	return []diag.Diagnostic{d}
}

// runScriptKind runs one type-diagnostic family over a script-layer
// document. unusedOnly keeps only diagnostics tagged unnecessary.
func (e *Engine) runScriptKind(ctx context.Context, doc func() docAndMap, kind engine.DiagnosticKind, unusedOnly bool) []diag.Diagnostic {
	if e.script == nil {
		return nil
	}
	dm := doc()
	if dm.doc == nil {
		return nil
	}
	raw, err := e.script.Diagnostics(ctx, dm.doc, kind)
	if err != nil {
		return nil
	}
	var out []diag.Diagnostic
	for _, d := range raw {
		if unusedOnly && !d.HasTag(diag.TagUnnecessary) {
			continue
		}
		if d.Code == diag.UnknownCode {
			d.Code = defaultScriptCode(kind, unusedOnly)
		}
		if rd, ok := e.remap(d, dm.m); ok {
			out = append(out, rd)
		}
	}
	return out
}

// defaultScriptCode categorizes engine diagnostics that arrive uncoded.
func defaultScriptCode(kind engine.DiagnosticKind, unusedOnly bool) diag.Code {
	if unusedOnly {
		return diag.ScriptUnused
	}
	switch kind {
	case engine.KindSemantic:
		return diag.ScriptSemantic
	case engine.KindSyntactic:
		return diag.ScriptSyntactic
	default:
		return diag.ScriptSuggestion
	}
}

// runTemplateUnusedTeleport relocates unused-symbol diagnostics raised in the
// lowered template onto the definition site in the setup script: the
// template occurrence teleports to the script-layer declaration, which then
// remaps to the component file. Shadow teleport entries never relocate.
func (e *Engine) runTemplateUnusedTeleport(ctx context.Context) []diag.Diagnostic {
	if e.script == nil {
		return nil
	}
	tmpl := e.templateDoc()
	setup := e.setupDoc()
	tp := e.file.Teleport()
	if tmpl.doc == nil || setup.m == nil || tp == nil {
		return nil
	}
	raw, err := e.script.Diagnostics(ctx, tmpl.doc, engine.KindSuggestion)
	if err != nil {
		return nil
	}
	var out []diag.Diagnostic
	for _, d := range raw {
		if !d.HasTag(diag.TagUnnecessary) {
			continue
		}
		if d.Code == diag.UnknownCode {
			d.Code = diag.ScriptUnused
		}
		for _, target := range tp.FindSpans(rangeOf(d)) {
			td := d
			td.Primary.Start, td.Primary.End = target.Start, target.End
			if rd, ok := e.remap(td, setup.m); ok {
				out = append(out, rd)
			}
		}
	}
	return out
}
