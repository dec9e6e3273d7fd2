package sourcemap

import (
	"fmt"
	"sort"
)

// Range is a half-open byte range [Start, End) in either the original or the
// generated document; which one is determined by the query direction.
type Range struct {
	Start uint32
	End   uint32
}

func (r Range) Empty() bool { return r.Start == r.End }

func (r Range) Len() uint32 { return r.End - r.Start }

// Contains reports exact-match-or-containment of other within r.
func (r Range) Contains(other Range) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// ContainsOffset reports whether the offset lies inside r. An empty range
// contains only its own start.
func (r Range) ContainsOffset(off uint32) bool {
	if r.Empty() {
		return off == r.Start
	}
	return r.Start <= off && off < r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Segment relates one source range to one mapped range. A single source range
// may appear in several segments (one-to-many duplication); mapped ranges
// never overlap within one Map.
type Segment struct {
	Source Range
	Mapped Range
	Data   Data
}

// Map is the bidirectional range mapping between an original document and one
// generated document. Segments are kept sorted by mapped start offset.
type Map struct {
	segments []Segment
}

// Builder accumulates segments for a Map. Generators fill a Builder while
// emitting text, then call Build once.
type Builder struct {
	segments []Segment
}

func NewBuilder() *Builder {
	return &Builder{segments: make([]Segment, 0, 16)}
}

// Add records one segment. Validation happens in Build.
func (b *Builder) Add(src, mapped Range, data Data) {
	b.segments = append(b.segments, Segment{Source: src, Mapped: mapped, Data: data})
}

// Build sorts segments by mapped offset and rejects overlapping mapped
// ranges; that invariant is what makes reverse lookups unambiguous.
func (b *Builder) Build() (*Map, error) {
	segs := make([]Segment, len(b.segments))
	copy(segs, b.segments)
	sort.SliceStable(segs, func(i, j int) bool {
		if segs[i].Mapped.Start != segs[j].Mapped.Start {
			return segs[i].Mapped.Start < segs[j].Mapped.Start
		}
		return segs[i].Mapped.End < segs[j].Mapped.End
	})
	for i := 1; i < len(segs); i++ {
		prev, cur := segs[i-1], segs[i]
		if cur.Mapped.Start < prev.Mapped.End && !cur.Mapped.Empty() && !prev.Mapped.Empty() {
			return nil, fmt.Errorf("mapped ranges overlap: %s and %s", prev.Mapped, cur.Mapped)
		}
	}
	return &Map{segments: segs}, nil
}

// Segments exposes the segment list for inspection. Callers must not modify it.
func (m *Map) Segments() []Segment {
	if m == nil {
		return nil
	}
	return m.segments
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.segments)
}

// RangeData is one query result: a range in the target coordinate space plus
// the segment payload it came through.
type RangeData struct {
	Range Range
	Data  Data
}

// translate moves r from one side of a segment to the other. Exact matches
// translate to the whole counterpart range; contained sub-ranges translate
// only when both sides have equal length, otherwise the segment is skipped.
func translate(r, from, to Range) (Range, bool) {
	if r == from {
		return to, true
	}
	if !from.Contains(r) {
		return Range{}, false
	}
	if from.Len() != to.Len() {
		return Range{}, false
	}
	delta := r.Start - from.Start
	return Range{Start: to.Start + delta, End: to.Start + delta + r.Len()}, true
}

func translatePoint(off uint32, from, to Range) (uint32, bool) {
	if !from.ContainsOffset(off) && off != from.End {
		return 0, false
	}
	delta := off - from.Start
	if delta > to.Len() {
		delta = to.Len()
	}
	return to.Start + delta, true
}

// MappedRanges translates a source range into the generated document.
// Segments lacking any requested capability are skipped, as are
// AdditionalReference segments unless includeAdditional is set.
func (m *Map) MappedRanges(src Range, need Capability, includeAdditional bool) []RangeData {
	if m == nil {
		return nil
	}
	var out []RangeData
	for _, seg := range m.segments {
		if !seg.Data.Caps.Has(need) {
			continue
		}
		if seg.Data.AdditionalReference && !includeAdditional {
			continue
		}
		if r, ok := translate(src, seg.Source, seg.Mapped); ok {
			out = append(out, RangeData{Range: r, Data: seg.Data})
		}
	}
	return out
}

// SourceRanges translates a range in the generated document back to the
// original document.
func (m *Map) SourceRanges(mapped Range, need Capability, includeAdditional bool) []RangeData {
	if m == nil {
		return nil
	}
	var out []RangeData
	for _, seg := range m.segments {
		if !seg.Data.Caps.Has(need) {
			continue
		}
		if seg.Data.AdditionalReference && !includeAdditional {
			continue
		}
		if r, ok := translate(mapped, seg.Mapped, seg.Source); ok {
			out = append(out, RangeData{Range: r, Data: seg.Data})
		}
	}
	return out
}

// MappedPoint translates a single source offset into the generated document.
// The first matching segment wins.
func (m *Map) MappedPoint(off uint32, need Capability) (uint32, Data, bool) {
	if m == nil {
		return 0, Data{}, false
	}
	for _, seg := range m.segments {
		if !seg.Data.Caps.Has(need) || seg.Data.AdditionalReference {
			continue
		}
		if p, ok := translatePoint(off, seg.Source, seg.Mapped); ok {
			return p, seg.Data, true
		}
	}
	return 0, Data{}, false
}

// SourcePoint translates a single generated-document offset back to the
// original document.
func (m *Map) SourcePoint(off uint32, need Capability) (uint32, Data, bool) {
	if m == nil {
		return 0, Data{}, false
	}
	for _, seg := range m.segments {
		if !seg.Data.Caps.Has(need) || seg.Data.AdditionalReference {
			continue
		}
		if p, ok := translatePoint(off, seg.Mapped, seg.Source); ok {
			return p, seg.Data, true
		}
	}
	return 0, Data{}, false
}
