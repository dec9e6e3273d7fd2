package vdoc

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"sfcls/internal/sourcemap"
)

// emitter builds generated text and its source map together, so mapped ranges
// are always derived from the actual write position.
type emitter struct {
	buf strings.Builder
	mb  *sourcemap.Builder
}

func newEmitter() *emitter {
	return &emitter{mb: sourcemap.NewBuilder()}
}

func (e *emitter) offset() uint32 {
	return mustU32(e.buf.Len())
}

// text writes unmapped text (synthetic scaffolding).
func (e *emitter) text(s string) {
	e.buf.WriteString(s)
}

// mapped writes s and records a segment from src to the written range.
func (e *emitter) mapped(src sourcemap.Range, s string, data sourcemap.Data) {
	start := e.offset()
	e.buf.WriteString(s)
	e.mb.Add(src, sourcemap.Range{Start: start, End: e.offset()}, data)
}

func (e *emitter) finish() (string, *sourcemap.Map, error) {
	m, err := e.mb.Build()
	if err != nil {
		return "", nil, err
	}
	return e.buf.String(), m, nil
}

func mustU32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("generated document offset overflow: %w", err))
	}
	return v
}

func rng(start, end uint32) sourcemap.Range {
	return sourcemap.Range{Start: start, End: end}
}
