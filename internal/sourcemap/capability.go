package sourcemap

import "strings"

// Capability declares which editor features are valid through a mapping
// segment. A query only matches a segment whose capability set includes
// every requested capability.
type Capability uint8

const (
	CapBasic Capability = 1 << iota
	CapDiagnostic
	CapCompletion
	CapRename
	CapReference
	CapDefinition
)

// CapAll grants every capability; passthrough generators use it.
const CapAll = CapBasic | CapDiagnostic | CapCompletion | CapRename | CapReference | CapDefinition

// Has reports whether c includes every capability in need.
func (c Capability) Has(need Capability) bool {
	return c&need == need
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, e := range []struct {
		cap  Capability
		name string
	}{
		{CapBasic, "basic"},
		{CapDiagnostic, "diagnostic"},
		{CapCompletion, "completion"},
		{CapRename, "rename"},
		{CapReference, "reference"},
		{CapDefinition, "definition"},
	} {
		if c&e.cap != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}

// Data is the per-segment payload: the capability set plus flags describing
// how the segment may be used.
type Data struct {
	Caps Capability

	// AdditionalReference marks a redundant shadow mapping that serves only
	// secondary duplicate-aware queries. It must never be the sole basis for
	// a primary navigation result.
	AdditionalReference bool

	// StructureOnly marks segments that exist to keep the generated document
	// syntactically valid; their text bears no relation to the source text.
	StructureOnly bool
}
