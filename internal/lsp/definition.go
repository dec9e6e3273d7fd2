package lsp

import (
	"context"
	"encoding/json"

	"sfcls/internal/sourcemap"
	"sfcls/internal/vdoc"
)

func (s *Server) handleDefinition(msg *rpcMessage) error {
	var params definitionParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	d := s.lookupDoc(params.TextDocument.URI)
	if d == nil {
		return s.sendResponse(msg.ID, []location{})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs.Get(d.id)
	offset := offsetForPositionInDoc(doc, params.Position)

	locs := s.teleportDefinitions(d, offset)
	if len(locs) == 0 {
		locs = s.engineDefinitions(d, offset)
	}
	if locs == nil {
		locs = []location{}
	}
	return s.sendResponse(msg.ID, locs)
}

// teleportDefinitions resolves a template occurrence of a setup binding
// straight to its declaration, without consulting the engine: the lowered
// import name teleports to the binding's exported occurrence, which maps back
// to the declaration in the component file.
func (s *Server) teleportDefinitions(d *openDoc, offset uint32) []location {
	tmpl := d.file.TemplateScript()
	setup := d.file.Setup()
	tp := d.file.Teleport()
	if tmpl == nil || setup == nil || tp == nil || tmpl.Script.Map == nil || setup.Primary.Map == nil {
		return nil
	}
	vOff, _, ok := tmpl.Script.Map.MappedPoint(offset, sourcemap.CapDefinition)
	if !ok {
		return nil
	}
	point := sourcemap.Range{Start: vOff, End: vOff + 1}
	doc := d.docs.Get(d.id)
	var locs []location
	// Shadow entries are consulted here on purpose: navigation from a
	// template occurrence goes through them, unlike diagnostic relocation.
	for _, e := range tp.Entries() {
		if e.From != point && !e.From.Contains(point) {
			continue
		}
		for _, hit := range setup.Primary.Map.SourceRanges(e.To, sourcemap.CapDefinition, true) {
			locs = append(locs, location{
				URI:   d.uri,
				Range: rangeForOffsets(doc, hit.Range.Start, hit.Range.End),
			})
		}
	}
	return locs
}

// engineDefinitions maps the offset into the setup document, asks the engine,
// and maps every in-file result back to component coordinates. Targets in
// documents we do not own (library sources) are dropped.
func (s *Server) engineDefinitions(d *openDoc, offset uint32) []location {
	if s.script == nil {
		return nil
	}
	setup := d.file.Setup()
	if setup == nil || setup.Primary.Doc == nil || setup.Primary.Map == nil {
		return nil
	}
	vOff, _, ok := setup.Primary.Map.MappedPoint(offset, sourcemap.CapDefinition)
	if !ok {
		return nil
	}
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	targets, err := s.script.FindDefinition(ctx, setup.Primary.Doc, vOff)
	if err != nil {
		s.logf("definition failed for %s: %v", d.uri, err)
		return nil
	}
	doc := d.docs.Get(d.id)
	var locs []location
	for _, tgt := range targets {
		_, m := d.virtualByURI(tgt.URI)
		if m == nil {
			continue
		}
		for _, hit := range m.SourceRanges(tgt.Range, sourcemap.CapDefinition, true) {
			locs = append(locs, location{
				URI:   d.uri,
				Range: rangeForOffsets(doc, hit.Range.Start, hit.Range.End),
			})
		}
	}
	return locs
}

// virtualByURI returns the virtual document named by uri and the source map
// owning it, or nils when the URI names a document outside this file.
func (d *openDoc) virtualByURI(uri string) (*vdoc.Document, *sourcemap.Map) {
	var arts []vdoc.Artifact
	if setup := d.file.Setup(); setup != nil {
		arts = append(arts, setup.Primary, setup.Completion, setup.TemplateTypes)
	}
	if tmpl := d.file.TemplateScript(); tmpl != nil {
		arts = append(arts, tmpl.Script, tmpl.CSS)
	}
	for _, art := range arts {
		if art.Doc != nil && art.Doc.URI == uri {
			return art.Doc, art.Map
		}
	}
	return nil, nil
}
