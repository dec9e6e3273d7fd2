package section

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// IgnoreMarker inside a top-level comment marks the next block in document
// order as excluded from diagnostics.
const IgnoreMarker = "sfcls-ignore"

// Extract parses the component block grammar out of src: top-level
// <template>, <script>, <script setup>, <style> (repeatable) and custom
// blocks (repeatable). It never fails: malformed nesting yields best-effort
// byte ranges, unterminated blocks run to end of input.
func Extract(src []byte) *Sections {
	sc := scanner{src: src}
	out := &Sections{}
	var markers []uint32

	for !sc.eof() {
		sc.skipUntilTag()
		if sc.eof() {
			break
		}
		tagStart := sc.pos
		switch {
		case sc.consume("<!--"):
			comment := sc.readUntil("-->")
			if strings.Contains(comment, IgnoreMarker) {
				markers = append(markers, u32(tagStart))
			}
		case sc.consume("</"):
			// Stray close tag at top level; skip it.
			sc.readUntil(">")
		default:
			sc.pos++ // consume '<'
			sec, ok := sc.parseBlock(u32(tagStart))
			if ok {
				out.place(sec)
			}
		}
	}

	out.applyIgnoreMarkers(markers)
	return out
}

func (s *Sections) place(sec *Section) {
	switch sec.Kind {
	case KindTemplate:
		if s.Template == nil {
			s.Template = sec
		}
	case KindScriptSetup:
		if s.ScriptSetup == nil {
			s.ScriptSetup = sec
		}
	case KindScript:
		if s.Script == nil {
			s.Script = sec
		}
	case KindStyle:
		s.Styles = append(s.Styles, sec)
	case KindCustom:
		s.Customs = append(s.Customs, sec)
	}
}

// applyIgnoreMarkers tags, for every marker comment, the next section in
// document order by opening-tag offset.
func (s *Sections) applyIgnoreMarkers(markers []uint32) {
	if len(markers) == 0 {
		return
	}
	all := s.All()
	for _, pos := range markers {
		for _, sec := range all {
			if sec.TagStart > pos {
				sec.Ignore = true
				break
			}
		}
	}
}

type scanner struct {
	src []byte
	pos int
}

func (sc *scanner) eof() bool { return sc.pos >= len(sc.src) }

func (sc *scanner) skipUntilTag() {
	for !sc.eof() && sc.src[sc.pos] != '<' {
		sc.pos++
	}
}

func (sc *scanner) consume(prefix string) bool {
	if strings.HasPrefix(string(sc.src[sc.pos:]), prefix) {
		sc.pos += len(prefix)
		return true
	}
	return false
}

// readUntil consumes input up to and including the terminator and returns the
// text before it. A missing terminator consumes the rest of the input.
func (sc *scanner) readUntil(term string) string {
	idx := strings.Index(string(sc.src[sc.pos:]), term)
	if idx < 0 {
		text := string(sc.src[sc.pos:])
		sc.pos = len(sc.src)
		return text
	}
	text := string(sc.src[sc.pos : sc.pos+idx])
	sc.pos += idx + len(term)
	return text
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '-' || b == '_'
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func (sc *scanner) readName() string {
	start := sc.pos
	for !sc.eof() && isNameByte(sc.src[sc.pos]) {
		sc.pos++
	}
	return string(sc.src[start:sc.pos])
}

func (sc *scanner) skipSpace() {
	for !sc.eof() && isSpaceByte(sc.src[sc.pos]) {
		sc.pos++
	}
}

// parseBlock parses one top-level block starting right after '<'.
// Returns ok=false for text that only looked like a tag.
func (sc *scanner) parseBlock(tagStart uint32) (*Section, bool) {
	name := sc.readName()
	if name == "" {
		return nil, false
	}
	attrs, selfClosing := sc.parseAttrs()

	sec := &Section{
		Tag:      name,
		TagStart: tagStart,
		Attrs:    attrs,
	}
	switch name {
	case "template":
		sec.Kind = KindTemplate
		sec.Lang = langOr(attrs, DefaultTemplateLang)
	case "script":
		if _, setup := attrs["setup"]; setup {
			sec.Kind = KindScriptSetup
		} else {
			sec.Kind = KindScript
		}
		sec.Lang = langOr(attrs, DefaultScriptLang)
	case "style":
		sec.Kind = KindStyle
		sec.Lang = langOr(attrs, DefaultStyleLang)
	default:
		sec.Kind = KindCustom
		sec.Lang = attrs["lang"]
	}

	contentStart := sc.pos
	if selfClosing {
		sec.Start = u32(contentStart)
		sec.End = u32(contentStart)
		return sec, true
	}

	contentEnd := sc.findBlockEnd(name)
	sec.Start = u32(contentStart)
	sec.End = u32(contentEnd)
	sec.Content = string(sc.src[contentStart:contentEnd])
	return sec, true
}

// parseAttrs reads attributes up to the closing '>' of the opening tag.
func (sc *scanner) parseAttrs() (map[string]string, bool) {
	attrs := map[string]string{}
	selfClosing := false
	for {
		sc.skipSpace()
		if sc.eof() {
			return attrs, true // unterminated opening tag: treat as empty block
		}
		if sc.src[sc.pos] == '>' {
			sc.pos++
			return attrs, selfClosing
		}
		if sc.consume("/>") {
			return attrs, true
		}
		if sc.src[sc.pos] == '/' {
			sc.pos++
			selfClosing = true
			continue
		}
		name := sc.readName()
		if name == "" {
			sc.pos++ // unexpected byte, skip it
			continue
		}
		sc.skipSpace()
		if !sc.eof() && sc.src[sc.pos] == '=' {
			sc.pos++
			sc.skipSpace()
			attrs[name] = sc.readAttrValue()
		} else {
			attrs[name] = ""
		}
	}
}

func (sc *scanner) readAttrValue() string {
	if sc.eof() {
		return ""
	}
	quote := sc.src[sc.pos]
	if quote == '"' || quote == '\'' {
		sc.pos++
		return sc.readUntil(string(quote))
	}
	start := sc.pos
	for !sc.eof() && !isSpaceByte(sc.src[sc.pos]) && sc.src[sc.pos] != '>' {
		sc.pos++
	}
	return string(sc.src[start:sc.pos])
}

// findBlockEnd locates the matching close tag, counting nested same-name
// openings so <template> blocks may contain inner templates. script/style
// content follows raw-text rules: the first close tag wins. Consumes through
// the close tag; a missing close tag yields end of input.
func (sc *scanner) findBlockEnd(name string) int {
	rawText := name == "script" || name == "style"
	depth := 1
	rest := string(sc.src[sc.pos:])
	openTok := "<" + name
	closeTok := "</" + name
	i := 0
	for i < len(rest) {
		closeIdx := strings.Index(rest[i:], closeTok)
		if closeIdx < 0 {
			sc.pos = len(sc.src)
			return len(sc.src)
		}
		closeIdx += i
		if !rawText {
			// Count nested openings between i and the close candidate.
			for j := i; j < closeIdx; {
				openIdx := strings.Index(rest[j:closeIdx], openTok)
				if openIdx < 0 {
					break
				}
				j += openIdx + len(openTok)
				// A name boundary makes it a real tag, not a prefix match.
				if j < len(rest) && isNameByte(rest[j]) {
					continue
				}
				depth++
			}
		}
		depth--
		if depth == 0 {
			contentEnd := sc.pos + closeIdx
			after := closeIdx + len(closeTok)
			gt := strings.Index(rest[after:], ">")
			if gt < 0 {
				sc.pos = len(sc.src)
			} else {
				sc.pos += after + gt + 1
			}
			return contentEnd
		}
		i = closeIdx + len(closeTok)
	}
	sc.pos = len(sc.src)
	return len(sc.src)
}

func langOr(attrs map[string]string, def string) string {
	if lang, ok := attrs["lang"]; ok && lang != "" {
		return lang
	}
	return def
}

func u32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("offset overflow: %w", err))
	}
	return v
}
