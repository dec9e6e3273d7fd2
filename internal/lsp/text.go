package lsp

import (
	"unicode/utf8"

	"sfcls/internal/source"
)

// applyChanges applies an incremental edit batch to the registered document
// and returns the new text. The first edit resolves its range through the
// document's line index; later edits in the same batch see text the index no
// longer describes and fall back to a forward scan.
func applyChanges(doc *source.Doc, changes []textDocumentContentChangeEvent) string {
	text := string(doc.Content)
	indexed := doc
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			indexed = nil
			continue
		}
		start := changeOffset(indexed, text, change.Range.Start)
		end := changeOffset(indexed, text, change.Range.End)
		if end < start {
			end = start
		}
		text = text[:start] + change.Text + text[end:]
		indexed = nil
	}
	return text
}

func changeOffset(doc *source.Doc, text string, pos position) int {
	if doc != nil {
		return int(offsetForPositionInDoc(doc, pos))
	}
	return scanOffset(text, pos)
}

// scanOffset finds the byte offset of a UTF-16 position in unindexed text.
func scanOffset(text string, pos position) int {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	i, line := 0, 0
	for i < len(text) && line < pos.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < pos.Line {
		return len(text)
	}
	units := 0
	for i < len(text) && text[i] != '\n' {
		r, size := utf8.DecodeRuneInString(text[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
		if units == pos.Character {
			break
		}
	}
	return i
}
