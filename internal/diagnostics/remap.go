package diagnostics

import (
	"sfcls/internal/diag"
	"sfcls/internal/source"
	"sfcls/internal/sourcemap"
)

func rangeOf(d diag.Diagnostic) sourcemap.Range {
	return sourcemap.Range{Start: d.Primary.Start, End: d.Primary.End}
}

func spanOf(doc source.DocID, start, end uint32) source.Span {
	return source.Span{Doc: doc, Start: start, End: end}
}

// remap translates a doc-local diagnostic into component-file coordinates
// through the document's map, using Diagnostic-capability segments only.
// When no single segment covers the whole range, separate point lookups for
// start and end are stitched into a best-effort range; a stitched range that
// would end before it starts is dropped, as is anything that maps nowhere —
// a wrong location is worse than a missing diagnostic.
func (e *Engine) remap(d diag.Diagnostic, m *sourcemap.Map) (diag.Diagnostic, bool) {
	src, ok := remapRange(rangeOf(d), m)
	if !ok {
		return diag.Diagnostic{}, false
	}
	d.Primary = spanOf(e.docID, src.Start, src.End)

	// Notes relocate the same way; unmappable notes are dropped from the
	// diagnostic, not the diagnostic from the stream.
	if len(d.Notes) > 0 {
		notes := make([]diag.Note, 0, len(d.Notes))
		for _, n := range d.Notes {
			nr, ok := remapRange(sourcemap.Range{Start: n.Span.Start, End: n.Span.End}, m)
			if !ok {
				continue
			}
			n.Span = spanOf(e.docID, nr.Start, nr.End)
			notes = append(notes, n)
		}
		d.Notes = notes
	}
	return d, true
}

func remapRange(r sourcemap.Range, m *sourcemap.Map) (sourcemap.Range, bool) {
	if m == nil {
		return sourcemap.Range{}, false
	}
	if hits := m.SourceRanges(r, sourcemap.CapDiagnostic, true); len(hits) > 0 {
		return hits[0].Range, true
	}
	start, _, okStart := m.SourcePoint(r.Start, sourcemap.CapDiagnostic)
	end, _, okEnd := m.SourcePoint(r.End, sourcemap.CapDiagnostic)
	if !okStart || !okEnd || end < start {
		return sourcemap.Range{}, false
	}
	return sourcemap.Range{Start: start, End: end}, true
}
