package vdoc

import (
	"fmt"
	"strings"

	"sfcls/internal/section"
	"sfcls/internal/sourcemap"
)

// SuffixMain names the canonical whole-component document.
const SuffixMain = ".__main"

// MarkerVersion versions the sentinel-marker protocol between the main
// generator and the script engine adapter. Marker text is part of the
// internal interface contract; bump the version when it changes.
const MarkerVersion = 1

// Marker identifies one sentinel position in the main document. Completion
// queries spliced at a marker's offset harvest the corresponding name set —
// the sole channel by which cross-section type information leaves the script
// engine.
type Marker uint8

const (
	MarkerContext Marker = iota
	MarkerComponents
	MarkerProps
	MarkerSetupReturns
	MarkerHTMLElements
	markerCount
)

func (m Marker) String() string {
	switch m {
	case MarkerContext:
		return "context"
	case MarkerComponents:
		return "components"
	case MarkerProps:
		return "props"
	case MarkerSetupReturns:
		return "setupReturns"
	case MarkerHTMLElements:
		return "htmlElements"
	}
	return "unknown"
}

// Sentinel returns the unique marker string embedded in the main document.
func (m Marker) Sentinel() string {
	return fmt.Sprintf("__SFCLS_M%d_%s__", MarkerVersion, strings.ToUpper(m.String()))
}

// Markers lists every sentinel in declaration order.
func Markers() []Marker {
	out := make([]Marker, 0, markerCount)
	for m := Marker(0); m < markerCount; m++ {
		out = append(out, m)
	}
	return out
}

// ScriptMainGen synthesizes the canonical whole-component document:
// it re-exports context, components, props, setup returns and global
// elements, each anchored at a fixed sentinel marker.
type ScriptMainGen struct {
	fileURI string
	key     mainKey
	valid   bool
	art     Artifact
	offsets map[Marker]uint32
}

type mainKey struct {
	hasScript bool
}

func NewScriptMainGen(fileURI string) *ScriptMainGen {
	return &ScriptMainGen{fileURI: fileURI}
}

// Update regenerates the main document when its declared inputs changed.
func (g *ScriptMainGen) Update(secs *section.Sections) (Artifact, error) {
	key := mainKey{
		hasScript: secs.Script != nil || secs.ScriptSetup != nil,
	}
	if g.valid && key == g.key {
		return g.art, nil
	}

	text := g.render(key)
	m, err := sourcemap.NewBuilder().Build() // fully synthetic: no mapped ranges
	if err != nil {
		return Artifact{}, err
	}

	offsets := make(map[Marker]uint32, markerCount)
	for _, mk := range Markers() {
		idx := strings.Index(text, mk.Sentinel())
		if idx < 0 {
			return Artifact{}, fmt.Errorf("main document lost sentinel %s", mk.Sentinel())
		}
		offsets[mk] = mustU32(idx)
	}

	g.key = key
	g.valid = true
	g.art = Artifact{Doc: replaceDoc(g.art.Doc, g.fileURI+SuffixMain, text), Map: m}
	g.offsets = offsets
	return g.art, nil
}

// MarkerOffsets returns the byte offset of each sentinel in the current text.
func (g *ScriptMainGen) MarkerOffsets() map[Marker]uint32 {
	return g.offsets
}

func (g *ScriptMainGen) render(key mainKey) string {
	var b strings.Builder
	if key.hasScript {
		fmt.Fprintf(&b, "import * as __setup from %q;\n", "./"+g.fileURI+SuffixScript)
	} else {
		b.WriteString("const __setup = {};\n")
	}
	b.WriteString("\ndeclare const __component: {\n")
	for _, mk := range Markers() {
		if mk == MarkerSetupReturns {
			fmt.Fprintf(&b, "\t%s: typeof __setup;\n", mk)
		} else {
			fmt.Fprintf(&b, "\t%s: unknown;\n", mk)
		}
	}
	b.WriteString("};\n\n")
	for _, mk := range Markers() {
		fmt.Fprintf(&b, "__component.%s.%s;\n", mk, mk.Sentinel())
	}
	b.WriteString("\nexport default __component;\n")
	return b.String()
}
