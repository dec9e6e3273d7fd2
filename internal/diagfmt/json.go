package diagfmt

import (
	"encoding/json"
	"io"
	"path/filepath"

	"sfcls/internal/diag"
	"sfcls/internal/source"
)

type jsonPos struct {
	Line uint32 `json:"line"`
	Col  uint32 `json:"col"`
}

type jsonNote struct {
	Message string   `json:"message"`
	Start   *jsonPos `json:"start,omitempty"`
}

type jsonFix struct {
	Title string `json:"title"`
}

type jsonDiagnostic struct {
	Path     string     `json:"path"`
	Code     string     `json:"code"`
	Severity string     `json:"severity"`
	Message  string     `json:"message"`
	Offset   uint32     `json:"offset"`
	End      uint32     `json:"end"`
	Start    *jsonPos   `json:"start,omitempty"`
	EndPos   *jsonPos   `json:"end_pos,omitempty"`
	Notes    []jsonNote `json:"notes,omitempty"`
	Fixes    []jsonFix  `json:"fixes,omitempty"`
}

// JSON пишет диагностики одним массивом. Идёт по bag.Items()
// (ожидается bag.Sort() заранее).
func JSON(w io.Writer, bag *diag.Bag, docs *source.DocSet, opts JSONOpts) error {
	items := bag.Items()
	if opts.Max > 0 && len(items) > opts.Max {
		items = items[:opts.Max]
	}

	out := make([]jsonDiagnostic, 0, len(items))
	for _, d := range items {
		jd := jsonDiagnostic{
			Code:     d.Code.String(),
			Severity: d.Severity.String(),
			Message:  d.Message,
			Offset:   d.Primary.Start,
			End:      d.Primary.End,
		}
		if doc := docs.Get(d.Primary.Doc); doc != nil {
			jd.Path = jsonPath(doc.URI, opts.PathMode)
			if opts.IncludePositions {
				start, end := docs.Resolve(d.Primary)
				jd.Start = &jsonPos{Line: start.Line, Col: start.Col}
				jd.EndPos = &jsonPos{Line: end.Line, Col: end.Col}
			}
		}
		if opts.IncludeNotes {
			for _, n := range d.Notes {
				note := jsonNote{Message: n.Msg}
				if opts.IncludePositions && !n.Span.Empty() {
					start, _ := docs.Resolve(n.Span)
					note.Start = &jsonPos{Line: start.Line, Col: start.Col}
				}
				jd.Notes = append(jd.Notes, note)
			}
		}
		if opts.IncludeFixes {
			for _, f := range d.Fixes {
				jd.Fixes = append(jd.Fixes, jsonFix{Title: f.Title})
			}
		}
		out = append(out, jd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func jsonPath(uri string, mode PathMode) string {
	if mode == PathModeBasename {
		return filepath.Base(uri)
	}
	return uri
}
