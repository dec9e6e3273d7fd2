// Package engine declares the embedded-language engine interfaces the core
// drives. Engines see only virtual documents; nothing here knows about
// component files, sections or source maps. Implementations live outside the
// module (editor-host adapters); test fakes live in internal/testkit.
package engine

import (
	"context"

	"sfcls/internal/diag"
	"sfcls/internal/sourcemap"
	"sfcls/internal/vdoc"
)

// DiagnosticKind selects one script diagnostic family. The families run as
// separate producers so they can be ordered, cached and cancelled
// independently.
type DiagnosticKind uint8

const (
	KindSemantic DiagnosticKind = iota
	KindSyntactic
	KindSuggestion
)

func (k DiagnosticKind) String() string {
	switch k {
	case KindSemantic:
		return "semantic"
	case KindSyntactic:
		return "syntactic"
	case KindSuggestion:
		return "suggestion"
	}
	return "unknown"
}

// TextEdit is one replacement in a virtual document.
type TextEdit struct {
	Range   sourcemap.Range
	NewText string
}

// CompletionItem is one engine completion result. Ranges are in the queried
// document's coordinates; the caller remaps them.
type CompletionItem struct {
	Label        string
	Detail       string
	Kind         string
	InsertText   string
	Edits        []TextEdit
	NeedsResolve bool
}

// CompletionList carries one completion query's results.
type CompletionList struct {
	Items      []CompletionItem
	Incomplete bool
}

// Location is one definition or reference target in a virtual document.
type Location struct {
	URI   string
	Range sourcemap.Range
}

// SelectionRange is one expand-selection step; Parent widens it.
type SelectionRange struct {
	Range  sourcemap.Range
	Parent *SelectionRange
}

// ScriptEngine is the type-aware engine for script documents. Diagnostics
// come back in the queried document's coordinates with no DocID attached;
// the aggregation layer owns the remap to the component file.
type ScriptEngine interface {
	// Diagnostics runs one family against the document.
	Diagnostics(ctx context.Context, doc *vdoc.Document, kind DiagnosticKind) ([]diag.Diagnostic, error)

	// Complete lists completions at a byte offset.
	Complete(ctx context.Context, doc *vdoc.Document, offset uint32) (CompletionList, error)

	// ResolveCompletion fills in lazy item fields, possibly attaching
	// additional text edits.
	ResolveCompletion(ctx context.Context, doc *vdoc.Document, item CompletionItem) (CompletionItem, error)

	// FindDefinition resolves the symbol at a byte offset.
	FindDefinition(ctx context.Context, doc *vdoc.Document, offset uint32) ([]Location, error)

	// SelectionRanges computes expand-selection chains for each offset.
	SelectionRanges(ctx context.Context, doc *vdoc.Document, offsets []uint32) ([]SelectionRange, error)

	// ProjectVersion increments whenever anything in the engine's project
	// changed. Cross-reference harvesting is gated on it.
	ProjectVersion() uint64
}

// MarkupEngine validates and assists template markup documents.
type MarkupEngine interface {
	Validate(ctx context.Context, doc *vdoc.Document) ([]diag.Diagnostic, error)
	Complete(ctx context.Context, doc *vdoc.Document, offset uint32) (CompletionList, error)
	SelectionRanges(ctx context.Context, doc *vdoc.Document, offsets []uint32) ([]SelectionRange, error)
}

// StyleEngine validates and assists stylesheet documents.
type StyleEngine interface {
	Validate(ctx context.Context, doc *vdoc.Document) ([]diag.Diagnostic, error)
	Complete(ctx context.Context, doc *vdoc.Document, offset uint32) (CompletionList, error)
}
