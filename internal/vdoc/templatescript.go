package vdoc

import (
	"fmt"
	"strings"

	"sfcls/internal/section"
	"sfcls/internal/sourcemap"
	"sfcls/internal/teleport"
)

// Document URI suffixes for the template-layer artifacts.
const (
	SuffixTemplateScript = ".__template"
	SuffixTemplateCSS    = ".__template.css"
)

// TemplateScriptResult is the output of one template lowering pass.
type TemplateScriptResult struct {
	Script   Artifact
	CSS      Artifact
	Teleport *teleport.Map
}

type templateScriptKey struct {
	template     string
	start        uint32
	hasTemplate  bool
	crossRef     string
	bindingsigil string
}

// TemplateScriptGen lowers template markup into type-checked script
// expressions: one statement per binding usage, attribute and event handler.
// Component and prop identifiers resolve against the cross-reference
// snapshot; the teleport map relates setup-name occurrences in the lowered
// script to their definition sites in the setup script.
type TemplateScriptGen struct {
	fileURI string
	key     templateScriptKey
	valid   bool
	res     TemplateScriptResult
}

func NewTemplateScriptGen(fileURI string) *TemplateScriptGen {
	return &TemplateScriptGen{fileURI: fileURI}
}

func bindingsSigil(bindings []SetupBinding) string {
	var b strings.Builder
	for _, bd := range bindings {
		fmt.Fprintf(&b, "%s@%d;", bd.Name, bd.Generated.Start)
	}
	return b.String()
}

// Update recomputes the lowered script when the template content, the
// cross-reference snapshot or the setup bindings changed.
func (g *TemplateScriptGen) Update(secs *section.Sections, cross *CrossRef, bindings []SetupBinding) (*TemplateScriptResult, error) {
	key := templateScriptKey{
		crossRef:     cross.Fingerprint(),
		bindingsigil: bindingsSigil(bindings),
	}
	if secs.Template != nil && !secs.Template.Ignore {
		key.hasTemplate = true
		key.template = secs.Template.Content
		key.start = secs.Template.Start
	}
	if g.valid && key == g.key {
		return &g.res, nil
	}

	res, err := g.generate(key, cross, bindings, g.res)
	if err != nil {
		return nil, err
	}
	g.key = key
	g.res = res
	g.valid = true
	return &g.res, nil
}

// Result returns the last computed artifacts without recomputation.
func (g *TemplateScriptGen) Result() *TemplateScriptResult {
	if !g.valid {
		return nil
	}
	return &g.res
}

func (g *TemplateScriptGen) generate(key templateScriptKey, cross *CrossRef, bindings []SetupBinding, prev TemplateScriptResult) (TemplateScriptResult, error) {
	if !key.hasTemplate {
		return TemplateScriptResult{}, nil
	}

	base := key.start
	elements, interps := scanTemplate(key.template)

	em := newEmitter()
	var tele []teleport.Entry

	bindingGen := make(map[string]sourcemap.Range, len(bindings))
	for _, b := range bindings {
		bindingGen[b.Name] = b.Generated
	}

	// Import preamble: one occurrence per setup binding. These names carry
	// navigation capabilities only — unused-symbol diagnostics raised here
	// are relocated through the teleport map, not remapped directly.
	importData := sourcemap.Data{Caps: sourcemap.CapReference | sourcemap.CapDefinition}
	if len(bindings) > 0 {
		em.text("import { ")
		for i, b := range bindings {
			if i > 0 {
				em.text(", ")
			}
			from := rng(em.offset(), em.offset()+mustU32(len(b.Name)))
			em.mapped(b.Source, b.Name, importData)
			tele = append(tele, teleport.Entry{
				From: from,
				To:   b.Generated,
				Data: sourcemap.Data{Caps: sourcemap.CapAll},
			})
		}
		em.text(" } from " + fmt.Sprintf("%q", "./"+g.fileURI+SuffixScript) + ";\n")
	}

	em.text("function __render() {\n")

	exprData := sourcemap.Data{Caps: sourcemap.CapAll}
	// emitExpr writes one lowered expression statement fragment and records
	// shadow teleports for setup-name occurrences inside it.
	emitExpr := func(expr string, src sourcemap.Range) {
		genStart := em.offset()
		em.mapped(src, expr, exprData)
		for _, id := range scanScript(expr).idents {
			if id.afterDot {
				continue
			}
			gen, ok := bindingGen[id.name]
			if !ok {
				continue
			}
			tele = append(tele, teleport.Entry{
				From: rng(genStart+id.start, genStart+id.end),
				To:   gen,
				Data: sourcemap.Data{Caps: sourcemap.CapAll, AdditionalReference: true},
			})
		}
	}

	tagData := sourcemap.Data{Caps: sourcemap.CapAll}
	nameData := sourcemap.Data{Caps: sourcemap.CapDiagnostic | sourcemap.CapCompletion | sourcemap.CapRename}
	elementData := sourcemap.Data{Caps: sourcemap.CapCompletion}

	for _, el := range elements {
		isComponent := cross.HasComponent(el.tag)
		if isComponent {
			em.text("\t__resolveComponent(\"")
			em.mapped(shift(el.tagRange, base), el.tag, tagData)
			em.text("\");\n")
		} else {
			em.text("\t__element(\"")
			em.mapped(shift(el.tagRange, base), el.tag, elementData)
			em.text("\");\n")
		}
		for _, a := range el.attrs {
			switch {
			case a.dynamic:
				em.text("\t__prop(\"" + el.tag + "\", \"")
				em.mapped(shift(a.nameRange, base), a.name, nameData)
				em.text("\", ((")
				if a.hasValue {
					emitExpr(a.value, shift(a.valueRange, base))
				}
				em.text(")));\n")
			case a.event:
				em.text("\t__on(\"" + el.tag + "\", \"")
				em.mapped(shift(a.nameRange, base), a.name, nameData)
				em.text("\", ((")
				if a.hasValue {
					emitExpr(a.value, shift(a.valueRange, base))
				}
				em.text(")));\n")
			case a.directive && a.hasValue:
				em.text("\t((")
				emitExpr(a.value, shift(a.valueRange, base))
				em.text("));\n")
			}
		}
	}

	for _, it := range interps {
		em.text("\t((")
		emitExpr(it.expr, shift(it.exprRange, base))
		em.text("));\n")
	}

	em.text("}\n")

	text, m, err := em.finish()
	if err != nil {
		return TemplateScriptResult{}, err
	}

	cssText, cssMap, err := g.generateCSS(elements, base)
	if err != nil {
		return TemplateScriptResult{}, err
	}

	res := TemplateScriptResult{Teleport: teleport.New(tele)}
	res.Script = Artifact{
		Doc: replaceDoc(prev.Script.Doc, g.fileURI+SuffixTemplateScript, text),
		Map: m,
	}
	res.CSS = Artifact{
		Doc: replaceDoc(prev.CSS.Doc, g.fileURI+SuffixTemplateCSS, cssText),
		Map: cssMap,
	}
	return res, nil
}

// generateCSS collects class names used by the template — static class
// attributes and string literals inside dynamic class/style bindings — into
// a stylesheet-shaped artifact for the style layer.
func (g *TemplateScriptGen) generateCSS(elements []tmplElement, base uint32) (string, *sourcemap.Map, error) {
	em := newEmitter()
	classData := sourcemap.Data{Caps: sourcemap.CapCompletion | sourcemap.CapReference}

	emitClass := func(name string, src sourcemap.Range) {
		em.text(".")
		em.mapped(src, name, classData)
		em.text(" {}\n")
	}

	for _, el := range elements {
		for _, a := range el.attrs {
			if !a.hasValue {
				continue
			}
			switch {
			case !a.dynamic && !a.event && !a.directive && a.name == "class":
				off := a.valueRange.Start
				for _, part := range splitClassList(a.value) {
					emitClass(part.text, shift(rng(off+part.start, off+part.end), base))
				}
			case a.dynamic && (a.name == "class" || a.name == "style"):
				for _, lit := range stringLiterals(a.value) {
					emitClass(lit.text, shift(rng(a.valueRange.Start+lit.start, a.valueRange.Start+lit.end), base))
				}
			}
		}
	}
	text, m, err := em.finish()
	if err != nil {
		return "", nil, err
	}
	return text, m, nil
}

type textSpan struct {
	text       string
	start, end uint32
}

func splitClassList(value string) []textSpan {
	var out []textSpan
	i := 0
	for i < len(value) {
		for i < len(value) && isTmplSpace(value[i]) {
			i++
		}
		start := i
		for i < len(value) && !isTmplSpace(value[i]) {
			i++
		}
		if i > start {
			out = append(out, textSpan{text: value[start:i], start: uint32(start), end: uint32(i)})
		}
	}
	return out
}

// stringLiterals extracts single- or double-quoted literal contents.
func stringLiterals(expr string) []textSpan {
	var out []textSpan
	i := 0
	for i < len(expr) {
		b := expr[i]
		if b == '\'' || b == '"' {
			start := i + 1
			j := start
			for j < len(expr) && expr[j] != b {
				j++
			}
			if j < len(expr) && j > start {
				out = append(out, textSpan{text: expr[start:j], start: uint32(start), end: uint32(j)})
			}
			i = j + 1
			continue
		}
		i++
	}
	return out
}
