package vdoc

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NameItem is the richer completion-item variant kept for components and
// global elements: enough to seed template completions without re-querying
// the script engine.
type NameItem struct {
	Label  string
	Detail string
	Kind   string
}

// CrossRef is the derived snapshot of names visible to the template layer,
// harvested from the script engine at the main document's sentinel markers.
// It may lag the source until the next project-version bump.
type CrossRef struct {
	Context      []string
	Components   []string
	Props        []string
	SetupReturns []string
	HTMLElements []string

	ComponentItems []NameItem
	ElementItems   []NameItem
}

// HasComponent reports whether the tag names a known component.
func (c *CrossRef) HasComponent(tag string) bool {
	if c == nil {
		return false
	}
	for _, name := range c.Components {
		if name == tag {
			return true
		}
	}
	return false
}

// Fingerprint is a stable digest of the name sets, used as a memoization key
// by the template-script generator. Labels are NFC-normalized so visually
// identical names compare equal regardless of the engine's encoding choices.
func (c *CrossRef) Fingerprint() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, set := range [][]string{c.Context, c.Components, c.Props, c.SetupReturns, c.HTMLElements} {
		b.WriteString(fingerprintSet(set))
		b.WriteByte('\n')
	}
	return b.String()
}

func fingerprintSet(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = norm.NFC.String(n)
	}
	sort.Strings(out)
	return strings.Join(out, "\x00")
}

// SetEqual reports whether two snapshots expose identical name sets,
// ignoring order and the richer item variants.
func (c *CrossRef) SetEqual(other *CrossRef) bool {
	return c.Fingerprint() == other.Fingerprint()
}
