// Package vdoc synthesizes virtual documents: complete, self-contained
// documents in one embedded language's syntax, generated from component-file
// sections and paired with a source map back to the component file. Each
// generator owns its documents and recomputes them lazily, keyed on the
// identity/version of its declared inputs.
package vdoc

import (
	"sfcls/internal/sourcemap"
)

// Document is one synthetic document handed to an embedded-language engine.
// Version increments only when Text actually changes; downstream caches key
// on it to skip recomputation.
type Document struct {
	URI     string
	Text    string
	Version int32
}

// Artifact pairs one generated document with its source map. Generators with
// absent inputs yield a zero Artifact (nil document, nil map); callers treat
// that as "skip this layer", never as failure.
type Artifact struct {
	Doc *Document
	Map *sourcemap.Map
}

// Present reports whether the artifact carries a document.
func (a Artifact) Present() bool {
	return a.Doc != nil
}

// replaceDoc applies the content-equality gate: the existing document is kept
// (same pointer, same version) when the new text is identical, otherwise a
// fresh document with a bumped version is returned.
func replaceDoc(old *Document, uri, text string) *Document {
	if old != nil && old.Text == text {
		return old
	}
	var version int32 = 1
	if old != nil {
		version = old.Version + 1
	}
	return &Document{URI: uri, Text: text, Version: version}
}
