package source

import (
	"fmt"
)

// Span is a half-open byte range [Start, End) inside one document.
type Span struct {
	Doc   DocID
	Start uint32
	End   uint32
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.Doc, s.Start, s.End)
}

// Contains reports whether other lies fully inside s.
// Spans from different documents never contain each other.
func (s Span) Contains(other Span) bool {
	return s.Doc == other.Doc && s.Start <= other.Start && other.End <= s.End
}

// ContainsOffset reports whether the byte offset lies inside s.
// An empty span contains only its own start offset.
func (s Span) ContainsOffset(off uint32) bool {
	if s.Empty() {
		return off == s.Start
	}
	return s.Start <= off && off < s.End
}

// Cover extends s to include other. Spans from different documents
// are left untouched.
func (s Span) Cover(other Span) Span {
	if s.Doc != other.Doc {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

func (s Span) ShiftLeft(n uint32) Span {
	return Span{
		Doc:   s.Doc,
		Start: s.Start - n,
		End:   s.End - n,
	}
}

func (s Span) ShiftRight(n uint32) Span {
	return Span{
		Doc:   s.Doc,
		Start: s.Start + n,
		End:   s.End + n,
	}
}
