package source

import (
	"crypto/sha256"
	"fmt"
	"os"

	"fortio.org/safecast"
)

// DocSet tracks every document the server knows about: the original component
// files plus the virtual documents their generators synthesize. Adding the
// same URI again creates a fresh DocID, so old spans stay resolvable until
// their owner drops them.
type DocSet struct {
	docs  []Doc
	index map[string]DocID // URI -> latest id
}

// NewDocSet creates a new empty DocSet.
func NewDocSet() *DocSet {
	return &DocSet{
		docs:  make([]Doc, 0),
		index: make(map[string]DocID),
	}
}

// Add stores a document from normalized bytes, computes LineIdx and Hash, and
// returns a new DocID. A new DocID is created even if the URI is already known.
func (ds *DocSet) Add(uri string, content []byte, flags DocFlags) DocID {
	hash := sha256.Sum256(content)
	lineIdx := buildLineIndex(content)

	lenDocs, err := safecast.Conv[uint32](len(ds.docs))
	if err != nil {
		panic(fmt.Errorf("doc count overflow: %w", err))
	}
	id := DocID(lenDocs)
	ds.docs = append(ds.docs, Doc{
		ID:      id,
		URI:     uri,
		Content: content,
		LineIdx: lineIdx,
		Hash:    hash,
		Flags:   flags,
	})
	ds.index[uri] = id
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (ds *DocSet) Load(path string) (DocID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := DocFlags(0)
	if hadBOM {
		flags |= DocHadBOM
	}
	if hadCRLF {
		flags |= DocNormalizedCRLF
	}
	return ds.Add(path, content, flags), nil
}

// AddVirtual adds a generated document with the DocVirtual flag.
func (ds *DocSet) AddVirtual(uri string, content []byte) DocID {
	return ds.Add(uri, content, DocVirtual)
}

// Get returns the document metadata for the given ID.
// Get returns the document, or nil for an unknown ID.
func (ds *DocSet) Get(id DocID) *Doc {
	if int(id) >= len(ds.docs) {
		return nil
	}
	return &ds.docs[id]
}

// GetLatest returns the latest document ID for the given URI, if known.
func (ds *DocSet) GetLatest(uri string) (DocID, bool) {
	id, ok := ds.index[uri]
	return id, ok
}

// Resolve converts a span into line and column positions.
func (ds *DocSet) Resolve(span Span) (start, end LineCol) {
	d := ds.Get(span.Doc)
	if d == nil {
		return LineCol{}, LineCol{}
	}
	return toLineCol(d.LineIdx, span.Start), toLineCol(d.LineIdx, span.End)
}

// GetLine returns the 1-based line from the document, without the trailing
// newline. Out-of-range line numbers yield an empty string.
func (d *Doc) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}

	var start, end, lenLineIdx, lenContent uint32
	var err error
	lenLineIdx, err = safecast.Conv[uint32](len(d.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err = safecast.Conv[uint32](len(d.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenLineIdx:
		start = d.LineIdx[lineNum-2] + 1
	default:
		return ""
	}

	if (lineNum - 1) < lenLineIdx {
		end = d.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}

	if start >= lenContent {
		return ""
	}
	if end > lenContent {
		end = lenContent
	}

	return string(d.Content[start:end])
}
