package vdoc

import (
	"fmt"
	"strings"

	"sfcls/internal/section"
	"sfcls/internal/sourcemap"
)

// Document URI suffixes for the near-passthrough artifacts.
const (
	SuffixMarkup = ".__markup"
	SuffixStyle  = ".__style_%d.css"
)

// Template dialects accepted by TemplateRawGen.
const (
	DialectHTML      = "html"
	DialectShorthand = "shorthand"
)

type templateRawKey struct {
	template    string
	start       uint32
	hasTemplate bool
	dialect     string
}

// TemplateRawGen emits the template content as a markup document for
// structural validation. The html dialect is verbatim; the shorthand dialect
// (indentation-nested `tag.class text` lines) is normalized to markup with
// its own map, so structural diagnostics land on the shorthand source.
type TemplateRawGen struct {
	fileURI string
	key     templateRawKey
	valid   bool
	art     Artifact
}

func NewTemplateRawGen(fileURI string) *TemplateRawGen {
	return &TemplateRawGen{fileURI: fileURI}
}

func (g *TemplateRawGen) Update(secs *section.Sections, dialect string) (Artifact, error) {
	key := templateRawKey{dialect: dialect}
	if secs.Template != nil && !secs.Template.Ignore {
		key.hasTemplate = true
		key.template = secs.Template.Content
		key.start = secs.Template.Start
	}
	if g.valid && key == g.key {
		return g.art, nil
	}

	var art Artifact
	if key.hasTemplate {
		var err error
		switch dialect {
		case DialectShorthand:
			art, err = g.normalizeShorthand(key)
		default:
			art, err = g.passthrough(key)
		}
		if err != nil {
			return Artifact{}, err
		}
	}
	g.key = key
	g.art = art
	g.valid = true
	return g.art, nil
}

func (g *TemplateRawGen) passthrough(key templateRawKey) (Artifact, error) {
	em := newEmitter()
	em.mapped(rng(key.start, key.start+mustU32(len(key.template))), key.template,
		sourcemap.Data{Caps: sourcemap.CapAll})
	text, m, err := em.finish()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Doc: replaceDoc(g.art.Doc, g.fileURI+SuffixMarkup, text), Map: m}, nil
}

// normalizeShorthand expands indentation-nested `tag.class#id attrs... text`
// lines into markup. Tag words and literal text keep full capabilities;
// synthesized brackets and close tags are structure-only.
func (g *TemplateRawGen) normalizeShorthand(key templateRawKey) (Artifact, error) {
	em := newEmitter()
	structData := sourcemap.Data{Caps: sourcemap.CapBasic, StructureOnly: true}
	fullData := sourcemap.Data{Caps: sourcemap.CapAll}

	type openTag struct {
		tag    string
		indent int
	}
	var stack []openTag

	closeTo := func(indent int) {
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			em.text(strings.Repeat("\t", len(stack)) + "</" + top.tag + ">\n")
		}
	}

	src := key.template
	lineOff := 0
	for _, line := range strings.SplitAfter(src, "\n") {
		off := lineOff
		lineOff += len(line)
		line = strings.TrimRight(line, "\n\r")
		indent := 0
		for indent < len(line) && (line[indent] == ' ' || line[indent] == '\t') {
			indent++
		}
		body := line[indent:]
		if body == "" {
			continue
		}
		closeTo(indent)

		// Leading `| text` lines are raw text nodes.
		if body[0] == '|' {
			text := strings.TrimLeft(body[1:], " ")
			start := off + indent + (len(body) - len(strings.TrimLeft(body[1:], " ")))
			em.text(strings.Repeat("\t", len(stack)))
			em.mapped(rng(key.start+mustU32(start), key.start+mustU32(start+len(text))), text, fullData)
			em.text("\n")
			continue
		}

		tag, classes, id, rest, tagStart := splitShorthandLine(body)
		if tag == "" {
			tag = "div"
		}
		em.text(strings.Repeat("\t", len(stack)))
		em.mapped(rng(key.start+mustU32(off+indent), key.start+mustU32(off+indent+1)), "<", structData)
		if tagStart >= 0 {
			s := off + indent + tagStart
			em.mapped(rng(key.start+mustU32(s), key.start+mustU32(s+len(tag))), tag, fullData)
		} else {
			em.text(tag)
		}
		if id != "" {
			em.text(fmt.Sprintf(" id=%q", id))
		}
		if len(classes) > 0 {
			em.text(fmt.Sprintf(" class=%q", strings.Join(classes, " ")))
		}
		em.text(">")
		if rest.text != "" {
			s := off + indent + int(rest.start)
			em.mapped(rng(key.start+mustU32(s), key.start+mustU32(s+len(rest.text))), rest.text, fullData)
		}
		em.text("\n")
		stack = append(stack, openTag{tag: tag, indent: indent})
	}
	closeTo(0)

	text, m, err := em.finish()
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Doc: replaceDoc(g.art.Doc, g.fileURI+SuffixMarkup, text), Map: m}, nil
}

// splitShorthandLine splits `tag.cls#id rest` into its parts. tagStart is the
// offset of the tag word within the line body, or -1 when the line starts
// with a class/id selector and the tag is implied.
func splitShorthandLine(body string) (tag string, classes []string, id string, rest textSpan, tagStart int) {
	i := 0
	tagStart = -1
	if i < len(body) && isIdentStart(body[i]) {
		tagStart = 0
		for i < len(body) && (isIdentByte(body[i]) || body[i] == '-') {
			i++
		}
		tag = body[:i]
	}
	for i < len(body) && (body[i] == '.' || body[i] == '#') {
		sigil := body[i]
		i++
		start := i
		for i < len(body) && (isIdentByte(body[i]) || body[i] == '-') {
			i++
		}
		if i == start {
			break
		}
		if sigil == '.' {
			classes = append(classes, body[start:i])
		} else {
			id = body[start:i]
		}
	}
	for i < len(body) && (body[i] == ' ' || body[i] == '\t') {
		i++
	}
	if i < len(body) {
		rest = textSpan{text: body[i:], start: uint32(i), end: uint32(len(body))}
	}
	return tag, classes, id, rest, tagStart
}

type styleRawKey struct {
	sigil string
}

// StyleRawGen emits each style block verbatim as its own stylesheet document.
type StyleRawGen struct {
	fileURI string
	key     styleRawKey
	valid   bool
	arts    []Artifact
}

func NewStyleRawGen(fileURI string) *StyleRawGen {
	return &StyleRawGen{fileURI: fileURI}
}

func styleSigil(secs *section.Sections) string {
	var b strings.Builder
	for i, s := range secs.Styles {
		if s.Ignore {
			continue
		}
		fmt.Fprintf(&b, "%d@%d:%d;", i, s.Start, len(s.Content))
		b.WriteString(s.Content)
	}
	return b.String()
}

func (g *StyleRawGen) Update(secs *section.Sections) ([]Artifact, error) {
	key := styleRawKey{sigil: styleSigil(secs)}
	if g.valid && key == g.key {
		return g.arts, nil
	}

	var arts []Artifact
	slot := 0
	for _, s := range secs.Styles {
		if s.Ignore {
			continue
		}
		em := newEmitter()
		em.mapped(rng(s.Start, s.Start+mustU32(len(s.Content))), s.Content,
			sourcemap.Data{Caps: sourcemap.CapAll})
		text, m, err := em.finish()
		if err != nil {
			return nil, err
		}
		var prev *Document
		if slot < len(g.arts) {
			prev = g.arts[slot].Doc
		}
		uri := g.fileURI + fmt.Sprintf(SuffixStyle, slot)
		arts = append(arts, Artifact{Doc: replaceDoc(prev, uri, text), Map: m})
		slot++
	}
	g.key = key
	g.arts = arts
	g.valid = true
	return g.arts, nil
}
