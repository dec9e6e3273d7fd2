// Package teleport implements the second-order symbol map between two
// generated documents: each entry relates one occurrence of a logical symbol
// (say, a setup-returned name used in the lowered template script) to its
// counterpart occurrence (the name's definition site in the setup script).
// Diagnostics raised against one occurrence can be relocated to the other.
package teleport

import (
	"sfcls/internal/sourcemap"
)

// Entry relates a range in the lowered template script (From) to the
// counterpart occurrence of the same symbol in the setup script (To).
type Entry struct {
	From sourcemap.Range
	To   sourcemap.Range
	Data sourcemap.Data
}

// Map is an ordered collection of teleport entries for one generated document
// pair. It is rebuilt together with its owning generator output.
type Map struct {
	entries []Entry
}

func New(entries []Entry) *Map {
	return &Map{entries: entries}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries exposes the entry list for inspection. Callers must not modify it.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// FindSpans returns every counterpart range for a range inside the lowered
// script. Entries flagged AdditionalReference are shadow duplicates and are
// skipped: relocating through them would land diagnostics on synthetic text.
func (m *Map) FindSpans(from sourcemap.Range) []sourcemap.Range {
	if m == nil {
		return nil
	}
	var out []sourcemap.Range
	for _, e := range m.entries {
		if e.Data.AdditionalReference {
			continue
		}
		if from == e.From {
			out = append(out, e.To)
			continue
		}
		if e.From.Contains(from) && e.From.Len() == e.To.Len() {
			delta := from.Start - e.From.Start
			out = append(out, sourcemap.Range{Start: e.To.Start + delta, End: e.To.Start + delta + from.Len()})
		}
	}
	return out
}
