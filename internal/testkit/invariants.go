// Package testkit provides fake embedded-language engines and invariant
// checkers shared by package tests. Nothing here ships in release binaries.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"sfcls/internal/sourcemap"
)

// CheckMapInvariants runs the structural invariants every source map must
// hold:
//  1. every segment's mapped range lies within the generated text
//  2. non-empty mapped ranges never overlap
//  3. a round trip through any Diagnostic-capable segment is stable
func CheckMapInvariants(m *sourcemap.Map, genLen int) error {
	if m == nil {
		return fmt.Errorf("nil map")
	}
	lenGen, err := safecast.Conv[uint32](genLen)
	if err != nil {
		return fmt.Errorf("generated length overflow: %w", err)
	}

	segs := m.Segments()
	for i, s := range segs {
		if s.Mapped.End < s.Mapped.Start {
			return fmt.Errorf("segment %d: inverted mapped range %v", i, s.Mapped)
		}
		if s.Mapped.End > lenGen {
			return fmt.Errorf("segment %d: mapped range %v beyond generated text (%d)", i, s.Mapped, lenGen)
		}
		if s.Source.End < s.Source.Start {
			return fmt.Errorf("segment %d: inverted source range %v", i, s.Source)
		}
	}

	for i, a := range segs {
		if a.Mapped.Empty() {
			continue
		}
		for j, b := range segs[i+1:] {
			if b.Mapped.Empty() {
				continue
			}
			if a.Mapped.Start < b.Mapped.End && b.Mapped.Start < a.Mapped.End {
				return fmt.Errorf("segments %d and %d overlap: %v / %v", i, i+1+j, a.Mapped, b.Mapped)
			}
		}
	}

	for i, s := range segs {
		if !s.Data.Caps.Has(sourcemap.CapDiagnostic) || s.Mapped.Empty() {
			continue
		}
		srcs := m.SourceRanges(s.Mapped, sourcemap.CapDiagnostic, true)
		if len(srcs) == 0 {
			return fmt.Errorf("segment %d: mapped range %v does not remap", i, s.Mapped)
		}
		found := false
		for _, src := range srcs {
			back := m.MappedRanges(src.Range, sourcemap.CapDiagnostic, true)
			for _, b := range back {
				if b.Range == s.Mapped {
					found = true
				}
			}
		}
		if !found {
			return fmt.Errorf("segment %d: round trip through %v is not stable", i, s.Mapped)
		}
	}
	return nil
}
