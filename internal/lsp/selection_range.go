package lsp

import (
	"context"
	"encoding/json"

	"sfcls/internal/engine"
	"sfcls/internal/section"
	"sfcls/internal/source"
	"sfcls/internal/sourcemap"
)

func (s *Server) handleSelectionRange(msg *rpcMessage) error {
	var params selectionRangeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, -32602, "invalid params")
		}
	}
	d := s.lookupDoc(params.TextDocument.URI)
	if d == nil {
		return s.sendResponse(msg.ID, []selectionRange{})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs.Get(d.id)

	out := make([]selectionRange, 0, len(params.Positions))
	for _, pos := range params.Positions {
		offset := offsetForPositionInDoc(doc, pos)
		out = append(out, s.selectionRangeAt(d, doc, offset))
	}
	return s.sendResponse(msg.ID, out)
}

// selectionRangeAt builds one expand-selection chain. Offsets inside the
// setup script delegate to the engine and remap its chain; everything else
// widens by section structure.
func (s *Server) selectionRangeAt(d *openDoc, doc *source.Doc, offset uint32) selectionRange {
	outer := sectionChain(d.file.Sections(), doc, offset)

	if s.script != nil {
		if setup := d.file.Setup(); setup != nil && setup.Primary.Doc != nil && setup.Primary.Map != nil {
			if vOff, _, ok := setup.Primary.Map.MappedPoint(offset, sourcemap.CapBasic); ok {
				ctx := s.baseCtx
				if ctx == nil {
					ctx = context.Background()
				}
				chains, err := s.script.SelectionRanges(ctx, setup.Primary.Doc, []uint32{vOff})
				if err == nil && len(chains) == 1 {
					if sr, ok := remapSelectionChain(doc, setup.Primary.Map, &chains[0], outer); ok {
						return sr
					}
				}
			}
		}
	}
	if outer != nil {
		return *outer
	}
	return selectionRange{Range: rangeForOffsets(doc, offset, offset)}
}

// sectionChain widens from the enclosing section content to the whole section
// to the whole document.
func sectionChain(secs *section.Sections, doc *source.Doc, offset uint32) *selectionRange {
	whole := &selectionRange{Range: rangeForOffsets(doc, 0, safeUint32(len(doc.Content)))}
	if secs == nil {
		return whole
	}
	for _, sec := range secs.All() {
		if offset < sec.TagStart || offset >= sec.End {
			continue
		}
		block := &selectionRange{
			Range:  rangeForOffsets(doc, sec.TagStart, sec.End),
			Parent: whole,
		}
		start, end := sec.ContentRange()
		if offset >= start && offset < end {
			return &selectionRange{
				Range:  rangeForOffsets(doc, start, end),
				Parent: block,
			}
		}
		return block
	}
	return whole
}

// remapSelectionChain translates an engine chain back into component
// coordinates, dropping steps that only cover generated text, and grafting
// the section chain onto the widest mapped step.
func remapSelectionChain(doc *source.Doc, m *sourcemap.Map, chain *engine.SelectionRange, outer *selectionRange) (selectionRange, bool) {
	var steps []sourcemap.Range
	for cur := chain; cur != nil; cur = cur.Parent {
		hits := m.SourceRanges(cur.Range, sourcemap.CapBasic, true)
		if len(hits) == 0 {
			continue
		}
		steps = append(steps, hits[0].Range)
	}
	if len(steps) == 0 {
		return selectionRange{}, false
	}
	parent := outer
	for i := len(steps) - 1; i >= 0; i-- {
		parent = &selectionRange{
			Range:  rangeForOffsets(doc, steps[i].Start, steps[i].End),
			Parent: parent,
		}
	}
	return *parent, true
}
