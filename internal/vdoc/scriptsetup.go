package vdoc

import (
	"strings"

	"sfcls/internal/section"
	"sfcls/internal/sourcemap"
)

// Document URI suffixes for the script-layer artifacts.
const (
	SuffixScript           = ".__script"
	SuffixScriptCompletion = ".__script.completion"
	SuffixScriptTemplate   = ".__script.template"
)

// SetupExportsName is the synthesized surface the template-type document
// exposes for the template layer.
const SetupExportsName = "__setupExports"

// SetupBinding is one module-scope binding the merged script declares,
// located both in the component file and in the primary generated document.
type SetupBinding struct {
	Name      string
	Source    sourcemap.Range // decl name range in the component file
	Generated sourcemap.Range // decl name range in the primary document
	FromSugar bool
}

// ScriptSetupResult is the output of one generation pass: three documents
// sharing one set of desugaring decisions, so their maps stay mutually
// consistent.
type ScriptSetupResult struct {
	Primary       Artifact
	Completion    Artifact
	TemplateTypes Artifact
	Bindings      []SetupBinding
	Sugar         []SugarBinding // ranges in component-file coordinates
}

type scriptSetupKey struct {
	script      string
	setup       string
	scriptStart uint32
	setupStart  uint32
	hasScript   bool
	hasSetup    bool
}

// ScriptSetupGen rewrites script + script-setup content into one
// type-checkable script, hoisting every top-level declaration into module
// scope via a synthesized export tail.
type ScriptSetupGen struct {
	fileURI string
	key     scriptSetupKey
	valid   bool
	res     ScriptSetupResult
}

func NewScriptSetupGen(fileURI string) *ScriptSetupGen {
	return &ScriptSetupGen{fileURI: fileURI}
}

func setupKeyOf(secs *section.Sections) scriptSetupKey {
	var k scriptSetupKey
	if secs.Script != nil && !secs.Script.Ignore {
		k.hasScript = true
		k.script = secs.Script.Content
		k.scriptStart = secs.Script.Start
	}
	if secs.ScriptSetup != nil && !secs.ScriptSetup.Ignore {
		k.hasSetup = true
		k.setup = secs.ScriptSetup.Content
		k.setupStart = secs.ScriptSetup.Start
	}
	return k
}

// Update recomputes the artifacts when the declared inputs changed. The
// content-equality gate in replaceDoc keeps document versions stable across
// re-runs that produce identical text.
func (g *ScriptSetupGen) Update(secs *section.Sections) (*ScriptSetupResult, error) {
	key := setupKeyOf(secs)
	if g.valid && key == g.key {
		return &g.res, nil
	}

	res, err := g.generate(key, g.res)
	if err != nil {
		return nil, err
	}
	g.key = key
	g.res = res
	g.valid = true
	return &g.res, nil
}

// Result returns the last computed artifacts without recomputation.
func (g *ScriptSetupGen) Result() *ScriptSetupResult {
	if !g.valid {
		return nil
	}
	return &g.res
}

func (g *ScriptSetupGen) generate(key scriptSetupKey, prev ScriptSetupResult) (ScriptSetupResult, error) {
	if !key.hasScript && !key.hasSetup {
		return ScriptSetupResult{}, nil
	}

	var text strings.Builder
	var segs []sourcemap.Segment
	add := func(src sourcemap.Range, s string, data sourcemap.Data) {
		start := mustU32(text.Len())
		text.WriteString(s)
		if data.Caps != 0 {
			segs = append(segs, sourcemap.Segment{
				Source: src,
				Mapped: rng(start, mustU32(text.Len())),
				Data:   data,
			})
		}
	}

	var bindings []SetupBinding
	var sugarOut []SugarBinding

	if key.hasScript {
		base := key.scriptStart
		add(rng(base, base+mustU32(len(key.script))), key.script, sourcemap.Data{Caps: sourcemap.CapAll})
		text.WriteString("\n;\n")
		for _, d := range scanScript(key.script).decls {
			bindings = append(bindings, SetupBinding{
				Name:   d.name,
				Source: shift(d.nameRange, base),
			})
		}
	}

	if key.hasSetup {
		base := key.setupStart
		pieces, sugar := desugarPieces(key.setup)
		for _, p := range pieces {
			add(shift(p.srcRange, base), p.text, p.data)
		}
		for _, sb := range sugar {
			shifted := SugarBinding{Name: sb.Name, NameRange: shift(sb.NameRange, base)}
			for _, u := range sb.Uses {
				u.Range = shift(u.Range, base)
				shifted.Uses = append(shifted.Uses, u)
			}
			sugarOut = append(sugarOut, shifted)
			bindings = append(bindings, SetupBinding{
				Name:      sb.Name,
				Source:    shift(sb.NameRange, base),
				FromSugar: true,
			})
		}
		for _, d := range scanScript(key.setup).decls {
			bindings = append(bindings, SetupBinding{
				Name:   d.name,
				Source: shift(d.nameRange, base),
			})
		}
	}

	bindings = dedupBindings(bindings)

	// Export tail: hoist every binding into module scope so the type engine
	// sees it regardless of where the declaration sits. The tail names are
	// shadow mappings; primary navigation stays on the declarations.
	exportData := sourcemap.Data{
		Caps:                sourcemap.CapReference | sourcemap.CapDefinition | sourcemap.CapRename,
		AdditionalReference: true,
	}
	if len(bindings) > 0 {
		text.WriteString("\nexport { ")
		for i, b := range bindings {
			if i > 0 {
				text.WriteString(", ")
			}
			add(b.Source, b.Name, exportData)
		}
		text.WriteString(" };\n")
	}

	coreText := text.String()
	primaryMap, err := buildMap(segs)
	if err != nil {
		return ScriptSetupResult{}, err
	}

	// Locate each binding in the generated text through the map itself.
	for i := range bindings {
		hits := primaryMap.MappedRanges(bindings[i].Source, sourcemap.CapDefinition, false)
		if len(hits) > 0 {
			bindings[i].Generated = hits[0].Range
		}
	}

	// Completion variant: identical text, every segment relaxed to
	// completion-only capabilities so loose queries can't leak into
	// navigation or diagnostics.
	complSegs := make([]sourcemap.Segment, len(segs))
	copy(complSegs, segs)
	for i := range complSegs {
		complSegs[i].Data.Caps = sourcemap.CapBasic | sourcemap.CapCompletion
	}
	complMap, err := buildMap(complSegs)
	if err != nil {
		return ScriptSetupResult{}, err
	}

	// Template-type variant: expose the inferred setup shape for the
	// template layer on top of the primary text.
	var ttText strings.Builder
	ttText.WriteString(coreText)
	ttSegs := make([]sourcemap.Segment, len(segs), len(segs)+len(bindings))
	copy(ttSegs, segs)
	ttText.WriteString("\nexport declare const " + SetupExportsName + ": { ")
	for i, b := range bindings {
		if i > 0 {
			ttText.WriteString(" ")
		}
		nameStart := mustU32(ttText.Len())
		ttText.WriteString(b.Name)
		ttSegs = append(ttSegs, sourcemap.Segment{
			Source: b.Source,
			Mapped: rng(nameStart, mustU32(ttText.Len())),
			Data:   sourcemap.Data{Caps: sourcemap.CapDiagnostic | sourcemap.CapReference},
		})
		ttText.WriteString(": typeof " + b.Name + ";")
	}
	ttText.WriteString(" };\n")
	ttMap, err := buildMap(ttSegs)
	if err != nil {
		return ScriptSetupResult{}, err
	}

	res := ScriptSetupResult{
		Bindings: bindings,
		Sugar:    sugarOut,
	}
	res.Primary = Artifact{
		Doc: replaceDoc(prev.Primary.Doc, g.fileURI+SuffixScript, coreText),
		Map: primaryMap,
	}
	res.Completion = Artifact{
		Doc: replaceDoc(prev.Completion.Doc, g.fileURI+SuffixScriptCompletion, coreText),
		Map: complMap,
	}
	res.TemplateTypes = Artifact{
		Doc: replaceDoc(prev.TemplateTypes.Doc, g.fileURI+SuffixScriptTemplate, ttText.String()),
		Map: ttMap,
	}
	return res, nil
}

func dedupBindings(in []SetupBinding) []SetupBinding {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, b := range in {
		if _, ok := seen[b.Name]; ok {
			continue
		}
		seen[b.Name] = struct{}{}
		out = append(out, b)
	}
	return out
}

func shift(r sourcemap.Range, base uint32) sourcemap.Range {
	return sourcemap.Range{Start: r.Start + base, End: r.End + base}
}

func buildMap(segs []sourcemap.Segment) (*sourcemap.Map, error) {
	b := sourcemap.NewBuilder()
	for _, s := range segs {
		b.Add(s.Source, s.Mapped, s.Data)
	}
	return b.Build()
}
