package vdoc

import (
	"strings"

	"sfcls/internal/sourcemap"
)

// tmplAttr is one attribute on a template element. Offsets are local to the
// template content; valueRange excludes the quotes.
type tmplAttr struct {
	name       string
	nameRange  sourcemap.Range
	value      string
	valueRange sourcemap.Range
	hasValue   bool
	dynamic    bool // :prop or v-bind:prop
	event      bool // @event or v-on:event
	directive  bool // other v-* directive carrying an expression
}

// tmplElement is one opening tag with its attributes.
type tmplElement struct {
	tag      string
	tagRange sourcemap.Range
	attrs    []tmplAttr
}

// tmplInterp is one {{ expr }} interpolation, trimmed to the expression.
type tmplInterp struct {
	expr      string
	exprRange sourcemap.Range
}

// scanTemplate streams elements and interpolations out of markup content.
// Best effort: malformed markup yields whatever parsed cleanly.
func scanTemplate(content string) ([]tmplElement, []tmplInterp) {
	var elements []tmplElement
	var interps []tmplInterp

	i := 0
	n := len(content)
	for i < n {
		switch {
		case strings.HasPrefix(content[i:], "{{"):
			end := strings.Index(content[i+2:], "}}")
			if end < 0 {
				i = n
				break
			}
			raw := content[i+2 : i+2+end]
			expr, lead := trimWithOffset(raw)
			if expr != "" {
				start := uint32(i + 2 + lead)
				interps = append(interps, tmplInterp{
					expr:      expr,
					exprRange: rng(start, start+uint32(len(expr))),
				})
			}
			i += 2 + end + 2
		case strings.HasPrefix(content[i:], "<!--"):
			end := strings.Index(content[i+4:], "-->")
			if end < 0 {
				i = n
				break
			}
			i += 4 + end + 3
		case content[i] == '<' && i+1 < n && content[i+1] == '/':
			gt := strings.IndexByte(content[i:], '>')
			if gt < 0 {
				i = n
				break
			}
			i += gt + 1
		case content[i] == '<' && i+1 < n && isNameByte(content[i+1]):
			el, next := scanElement(content, i)
			elements = append(elements, el)
			i = next
		default:
			i++
		}
	}
	return elements, interps
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '-' || b == '_'
}

func isTmplSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// scanElement parses one opening tag starting at '<'. Returns the element and
// the offset just past the closing '>'.
func scanElement(content string, at int) (tmplElement, int) {
	n := len(content)
	i := at + 1
	nameStart := i
	for i < n && isNameByte(content[i]) {
		i++
	}
	el := tmplElement{
		tag:      content[nameStart:i],
		tagRange: rng(uint32(nameStart), uint32(i)),
	}

	for i < n {
		for i < n && isTmplSpace(content[i]) {
			i++
		}
		if i >= n {
			return el, n
		}
		if content[i] == '>' {
			return el, i + 1
		}
		if content[i] == '/' {
			i++
			continue
		}
		attrStart := i
		for i < n && content[i] != '=' && content[i] != '>' && !isTmplSpace(content[i]) {
			i++
		}
		attr := classifyAttr(content[attrStart:i], uint32(attrStart))
		if i < n && content[i] == '=' {
			i++
			if i < n && (content[i] == '"' || content[i] == '\'') {
				quote := content[i]
				i++
				valStart := i
				for i < n && content[i] != quote {
					i++
				}
				attr.value = content[valStart:i]
				attr.valueRange = rng(uint32(valStart), uint32(i))
				attr.hasValue = true
				if i < n {
					i++ // closing quote
				}
			} else {
				valStart := i
				for i < n && !isTmplSpace(content[i]) && content[i] != '>' {
					i++
				}
				attr.value = content[valStart:i]
				attr.valueRange = rng(uint32(valStart), uint32(i))
				attr.hasValue = true
			}
		}
		if attr.name != "" {
			el.attrs = append(el.attrs, attr)
		}
	}
	return el, n
}

// classifyAttr splits directive prefixes off the raw attribute text and
// records the range of the bare name.
func classifyAttr(raw string, start uint32) tmplAttr {
	a := tmplAttr{}
	switch {
	case strings.HasPrefix(raw, ":"):
		a.dynamic = true
		a.name = raw[1:]
		a.nameRange = rng(start+1, start+uint32(len(raw)))
	case strings.HasPrefix(raw, "v-bind:"):
		a.dynamic = true
		a.name = raw[len("v-bind:"):]
		a.nameRange = rng(start+uint32(len("v-bind:")), start+uint32(len(raw)))
	case strings.HasPrefix(raw, "@"):
		a.event = true
		a.name = raw[1:]
		a.nameRange = rng(start+1, start+uint32(len(raw)))
	case strings.HasPrefix(raw, "v-on:"):
		a.event = true
		a.name = raw[len("v-on:"):]
		a.nameRange = rng(start+uint32(len("v-on:")), start+uint32(len(raw)))
	case strings.HasPrefix(raw, "v-"):
		a.directive = true
		a.name = raw
		a.nameRange = rng(start, start+uint32(len(raw)))
	default:
		a.name = raw
		a.nameRange = rng(start, start+uint32(len(raw)))
	}
	return a
}

// trimWithOffset trims surrounding whitespace and reports how many leading
// bytes were removed.
func trimWithOffset(s string) (string, int) {
	lead := 0
	for lead < len(s) && isTmplSpace(s[lead]) {
		lead++
	}
	end := len(s)
	for end > lead && isTmplSpace(s[end-1]) {
		end--
	}
	return s[lead:end], lead
}
