// Package sfc owns the per-file state of the pipeline: extracted sections,
// the virtual-document generators and the cross-reference snapshot. A File is
// mutated by exactly one goroutine; consumers re-fetch documents after each
// Update instead of holding on to them.
package sfc

import (
	"context"

	"sfcls/internal/engine"
	"sfcls/internal/section"
	"sfcls/internal/teleport"
	"sfcls/internal/vdoc"
)

// File is one component file and everything derived from it.
type File struct {
	uri     string
	script  engine.ScriptEngine
	dialect string

	text string
	secs *section.Sections

	setupGen *vdoc.ScriptSetupGen
	mainGen  *vdoc.ScriptMainGen
	tmplGen  *vdoc.TemplateScriptGen
	rawGen   *vdoc.TemplateRawGen
	styleGen *vdoc.StyleRawGen

	setup  *vdoc.ScriptSetupResult
	main   vdoc.Artifact
	tmpl   *vdoc.TemplateScriptResult
	raw    vdoc.Artifact
	styles []vdoc.Artifact

	cross      *vdoc.CrossRef
	crossToken uint64
	crossOK    bool
}

// New creates the file state. The script engine is used only for
// cross-reference harvesting; diagnostics go through internal/diagnostics.
func New(uri string, script engine.ScriptEngine, dialect string) *File {
	return &File{
		uri:      uri,
		script:   script,
		dialect:  dialect,
		cross:    &vdoc.CrossRef{},
		setupGen: vdoc.NewScriptSetupGen(uri),
		mainGen:  vdoc.NewScriptMainGen(uri),
		tmplGen:  vdoc.NewTemplateScriptGen(uri),
		rawGen:   vdoc.NewTemplateRawGen(uri),
		styleGen: vdoc.NewStyleRawGen(uri),
	}
}

// URI returns the component file's URI.
func (f *File) URI() string { return f.uri }

// Text returns the current component-file content.
func (f *File) Text() string { return f.text }

// Sections returns the current section parse. The pointer stays stable
// across updates; individual slots are patched in place.
func (f *File) Sections() *section.Sections { return f.secs }

// Update replaces the file content, re-extracts sections and regenerates
// whatever documents depend on changed inputs. The returned flags report
// whether the script-layer and template-script document versions moved;
// diagnostics scheduling keys on them.
func (f *File) Update(newText string) (scriptChanged, templateScriptChanged bool, err error) {
	f.text = newText
	f.secs = section.Merge(f.secs, section.Extract([]byte(newText)))

	prevScript := docVersion(setupDoc(f.setup))
	f.setup, err = f.setupGen.Update(f.secs)
	if err != nil {
		return false, false, err
	}
	scriptChanged = docVersion(setupDoc(f.setup)) != prevScript

	f.main, err = f.mainGen.Update(f.secs)
	if err != nil {
		return false, false, err
	}

	prevTmpl := docVersion(tmplDoc(f.tmpl))
	f.tmpl, err = f.tmplGen.Update(f.secs, f.cross, f.setup.Bindings)
	if err != nil {
		return false, false, err
	}
	templateScriptChanged = docVersion(tmplDoc(f.tmpl)) != prevTmpl

	f.raw, err = f.rawGen.Update(f.secs, f.dialect)
	if err != nil {
		return false, false, err
	}
	f.styles, err = f.styleGen.Update(f.secs)
	if err != nil {
		return false, false, err
	}
	return scriptChanged, templateScriptChanged, nil
}

// UpdateCrossRefData refreshes the cross-reference snapshot by splicing
// completion queries at the main document's sentinel markers. The harvest is
// gated on the engine's project version; when nothing in the project moved,
// or the harvested name sets are set-equal to the cached ones, the cached
// snapshot is kept and false is returned, so the template-script layer is
// not regenerated.
func (f *File) UpdateCrossRefData(ctx context.Context) (bool, error) {
	if !f.main.Present() {
		return false, nil
	}
	token := f.script.ProjectVersion()
	if f.crossOK && token == f.crossToken {
		return false, nil
	}

	next := &vdoc.CrossRef{}
	offsets := f.mainGen.MarkerOffsets()
	for _, mk := range vdoc.Markers() {
		list, err := f.script.Complete(ctx, f.main.Doc, offsets[mk])
		if err != nil {
			return false, err
		}
		names := make([]string, 0, len(list.Items))
		items := make([]vdoc.NameItem, 0, len(list.Items))
		for _, it := range list.Items {
			names = append(names, it.Label)
			items = append(items, vdoc.NameItem{Label: it.Label, Detail: it.Detail, Kind: it.Kind})
		}
		switch mk {
		case vdoc.MarkerContext:
			next.Context = names
		case vdoc.MarkerComponents:
			next.Components = names
			next.ComponentItems = items
		case vdoc.MarkerProps:
			next.Props = names
		case vdoc.MarkerSetupReturns:
			next.SetupReturns = names
		case vdoc.MarkerHTMLElements:
			next.HTMLElements = names
			next.ElementItems = items
		}
	}

	f.crossToken = token
	f.crossOK = true
	if next.SetEqual(f.cross) {
		return false, nil
	}
	f.cross = next

	var err error
	f.tmpl, err = f.tmplGen.Update(f.secs, f.cross, f.setup.Bindings)
	if err != nil {
		return false, err
	}
	return true, nil
}

// CrossRef returns the current cross-reference snapshot. It may lag the
// source until the next successful harvest.
func (f *File) CrossRef() *vdoc.CrossRef { return f.cross }

// Setup returns the script-layer generation result, or nil before the first
// Update.
func (f *File) Setup() *vdoc.ScriptSetupResult { return f.setup }

// Main returns the canonical whole-component document.
func (f *File) Main() vdoc.Artifact { return f.main }

// TemplateScript returns the lowered template result, or nil before the
// first Update.
func (f *File) TemplateScript() *vdoc.TemplateScriptResult { return f.tmpl }

// TemplateRaw returns the markup passthrough document.
func (f *File) TemplateRaw() vdoc.Artifact { return f.raw }

// Styles returns one verbatim document per style block.
func (f *File) Styles() []vdoc.Artifact { return f.styles }

// Teleport returns the template-script teleport map, or nil when there is no
// lowered template.
func (f *File) Teleport() *teleport.Map {
	if f.tmpl == nil {
		return nil
	}
	return f.tmpl.Teleport
}

func setupDoc(r *vdoc.ScriptSetupResult) *vdoc.Document {
	if r == nil {
		return nil
	}
	return r.Primary.Doc
}

func tmplDoc(r *vdoc.TemplateScriptResult) *vdoc.Document {
	if r == nil {
		return nil
	}
	return r.Script.Doc
}

func docVersion(d *vdoc.Document) int32 {
	if d == nil {
		return 0
	}
	return d.Version
}
