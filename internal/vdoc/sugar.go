package vdoc

import (
	"sort"
	"strings"

	"sfcls/internal/sourcemap"
)

// corePiece is one unit of generated script text: either a verbatim copy of a
// source slice or a synthetic replacement/insertion. A zero Data.Caps means
// the piece is emitted without a mapping segment.
type corePiece struct {
	srcRange sourcemap.Range // section-local; empty range for insertions
	text     string
	data     sourcemap.Data
	verbatim bool
}

// SugarUse records where a desugared binding is referenced.
type SugarUse struct {
	Name  string
	Range sourcemap.Range // section-local range of the reference
	Raw   bool            // written with the $ sigil (raw ref object)
}

// SugarBinding describes one desugared `ref:` declaration and the usage sites
// that received a trailing accessor versus raw-sigil treatment. All generated
// documents of one pass share these decisions, which keeps their maps
// mutually consistent.
type SugarBinding struct {
	Name      string
	NameRange sourcemap.Range // section-local range of the declared name
	Uses      []SugarUse
}

// SugarEdit is one non-verbatim piece of a desugared script: the range it
// occupies in the generated text and the source text it replaced. Replaying
// the edits in reverse order reconstructs the original content exactly.
type SugarEdit struct {
	GenRange   sourcemap.Range
	SourceText string
}

// desugarPieces lowers the auto-unwrap label sugar in script-setup content
// into explicit wrapped-value construction:
//
//	ref: x = expr   =>   let x = ref(expr)
//	x (plain use)   =>   x.value
//	$x (raw sigil)  =>   x
//
// The returned pieces concatenate to the full generated text; verbatim gaps
// carry full-capability mappings.
func desugarPieces(content string) ([]corePiece, []SugarBinding) {
	scan := scanScript(content)
	if len(scan.sugars) == 0 {
		if content == "" {
			return nil, nil
		}
		return []corePiece{{
			srcRange: rng(0, uint32(len(content))),
			text:     content,
			data:     sourcemap.Data{Caps: sourcemap.CapAll},
			verbatim: true,
		}}, nil
	}

	bindings := make([]SugarBinding, 0, len(scan.sugars))
	byName := make(map[string]int, len(scan.sugars))
	for _, sg := range scan.sugars {
		byName[sg.name] = len(bindings)
		bindings = append(bindings, SugarBinding{Name: sg.name, NameRange: sg.nameRange})
	}

	var patches []corePiece
	declSpans := make([]sourcemap.Range, 0, len(scan.sugars)*2)

	for _, sg := range scan.sugars {
		// `ref: ` => `let `
		patches = append(patches, corePiece{
			srcRange: rng(sg.labelStart, sg.nameRange.Start),
			text:     "let ",
			data:     sourcemap.Data{Caps: sourcemap.CapBasic, StructureOnly: true},
		})
		// declared name, verbatim
		patches = append(patches, corePiece{
			srcRange: sg.nameRange,
			text:     sg.name,
			data:     sourcemap.Data{Caps: sourcemap.CapAll},
			verbatim: true,
		})
		// open the wrapper right before the initializer
		patches = append(patches, corePiece{
			srcRange: rng(sg.exprRange.Start, sg.exprRange.Start),
			text:     SugarLabel + "(",
		})
		// close it at statement end
		patches = append(patches, corePiece{
			srcRange: rng(sg.stmtEnd, sg.stmtEnd),
			text:     ")",
		})
		declSpans = append(declSpans, rng(sg.labelStart, sg.nameRange.End))
	}

	inDecl := func(r sourcemap.Range) bool {
		for _, d := range declSpans {
			if d.Contains(r) {
				return true
			}
		}
		return false
	}

	for _, id := range scan.idents {
		idx, isBinding := byName[id.name]
		if !isBinding || id.afterDot {
			continue
		}
		r := rng(id.start, id.end)
		if inDecl(r) {
			continue
		}
		if isOwnDeclName(scan.decls, r) {
			continue
		}
		if isObjectKey(content, id.end) {
			continue
		}
		if id.dollar {
			// $x => x, raw ref object
			patches = append(patches, corePiece{
				srcRange: r,
				text:     id.name,
				data:     sourcemap.Data{Caps: sourcemap.CapAll},
			})
			bindings[idx].Uses = append(bindings[idx].Uses, SugarUse{Name: id.name, Range: r, Raw: true})
		} else {
			// x => x.value
			patches = append(patches, corePiece{
				srcRange: r,
				text:     id.name,
				data:     sourcemap.Data{Caps: sourcemap.CapAll},
				verbatim: true,
			})
			patches = append(patches, corePiece{
				srcRange: rng(id.end, id.end),
				text:     ".value",
			})
			bindings[idx].Uses = append(bindings[idx].Uses, SugarUse{Name: id.name, Range: r})
		}
	}

	sort.SliceStable(patches, func(i, j int) bool {
		if patches[i].srcRange.Start != patches[j].srcRange.Start {
			return patches[i].srcRange.Start < patches[j].srcRange.Start
		}
		// Insertions come before content at the same offset.
		return patches[i].srcRange.Empty() && !patches[j].srcRange.Empty()
	})

	// Stitch verbatim gaps between patches.
	var pieces []corePiece
	cursor := uint32(0)
	for _, p := range patches {
		if p.srcRange.Start > cursor {
			pieces = append(pieces, corePiece{
				srcRange: rng(cursor, p.srcRange.Start),
				text:     content[cursor:p.srcRange.Start],
				data:     sourcemap.Data{Caps: sourcemap.CapAll},
				verbatim: true,
			})
		}
		pieces = append(pieces, p)
		if p.srcRange.End > cursor {
			cursor = p.srcRange.End
		}
	}
	if int(cursor) < len(content) {
		pieces = append(pieces, corePiece{
			srcRange: rng(cursor, uint32(len(content))),
			text:     content[cursor:],
			data:     sourcemap.Data{Caps: sourcemap.CapAll},
			verbatim: true,
		})
	}
	return pieces, bindings
}

func isOwnDeclName(decls []scriptDecl, r sourcemap.Range) bool {
	for _, d := range decls {
		if d.nameRange == r {
			return true
		}
	}
	return false
}

// isObjectKey reports whether the identifier ending at off is immediately
// followed by ':' — a literal key, not a binding reference. Best effort.
func isObjectKey(content string, off uint32) bool {
	return int(off) < len(content) && content[off] == ':'
}

// DesugarScript lowers the label sugar and returns the generated text plus
// the edit list needed to reverse the transform.
func DesugarScript(content string) (string, []SugarEdit) {
	pieces, _ := desugarPieces(content)
	var buf strings.Builder
	var edits []SugarEdit
	for _, p := range pieces {
		start := uint32(buf.Len())
		buf.WriteString(p.text)
		if !p.verbatim {
			edits = append(edits, SugarEdit{
				GenRange:   rng(start, uint32(buf.Len())),
				SourceText: content[p.srcRange.Start:p.srcRange.End],
			})
		}
	}
	return buf.String(), edits
}

// ResugarScript reverses DesugarScript: replaying the recorded edits restores
// the original content byte for byte.
func ResugarScript(generated string, edits []SugarEdit) string {
	var buf strings.Builder
	cursor := uint32(0)
	for _, e := range edits {
		buf.WriteString(generated[cursor:e.GenRange.Start])
		buf.WriteString(e.SourceText)
		cursor = e.GenRange.End
	}
	buf.WriteString(generated[cursor:])
	return buf.String()
}
