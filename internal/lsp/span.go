package lsp

import (
	"sort"
	"unicode/utf8"

	"fortio.org/safecast"

	"sfcls/internal/source"
)

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

// offsetForPositionInDoc converts an LSP UTF-16 position into a byte offset
// in the component document.
func offsetForPositionInDoc(doc *source.Doc, pos position) uint32 {
	if doc == nil || pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	content := doc.Content
	if len(content) == 0 {
		return 0
	}
	lineCount := len(doc.LineIdx) + 1
	contentLen := safeUint32(len(content))
	if pos.Line >= lineCount {
		return contentLen
	}
	var lineStart uint32
	if pos.Line == 0 {
		lineStart = 0
	} else {
		lineStart = doc.LineIdx[pos.Line-1] + 1
	}
	lineEnd := contentLen
	if pos.Line < len(doc.LineIdx) {
		lineEnd = doc.LineIdx[pos.Line]
	}
	if lineStart > lineEnd {
		return lineEnd
	}
	units := 0
	off := lineStart
	for off < lineEnd {
		r, size := utf8.DecodeRune(content[off:lineEnd])
		if r == utf8.RuneError && size == 1 {
			size = 1
		}
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		off += safeUint32(size)
		if units == pos.Character {
			break
		}
	}
	return off
}

// positionForOffsetInDoc converts a byte offset back into an LSP UTF-16
// position.
func positionForOffsetInDoc(doc *source.Doc, offset uint32) position {
	if doc == nil {
		return position{}
	}
	contentLen := safeUint32(len(doc.Content))
	if offset > contentLen {
		offset = contentLen
	}
	lineIdx := doc.LineIdx
	idx := sort.Search(len(lineIdx), func(i int) bool { return lineIdx[i] >= offset })
	line := idx
	var lineStart uint32
	if idx == 0 {
		lineStart = 0
	} else {
		lineStart = lineIdx[idx-1] + 1
	}
	if lineStart > offset {
		lineStart = offset
	}
	units := 0
	for off := lineStart; off < offset; {
		r, size := utf8.DecodeRune(doc.Content[off:offset])
		if r == utf8.RuneError && size == 1 {
			size = 1
		}
		if off+safeUint32(size) > offset {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		off += safeUint32(size)
	}
	return position{Line: line, Character: units}
}

func rangeForSpan(doc *source.Doc, span source.Span) lspRange {
	if doc == nil {
		return lspRange{}
	}
	return lspRange{
		Start: positionForOffsetInDoc(doc, span.Start),
		End:   positionForOffsetInDoc(doc, span.End),
	}
}

func rangeForOffsets(doc *source.Doc, start, end uint32) lspRange {
	if doc == nil {
		return lspRange{}
	}
	return lspRange{
		Start: positionForOffsetInDoc(doc, start),
		End:   positionForOffsetInDoc(doc, end),
	}
}
