package vdoc

import (
	"sfcls/internal/sourcemap"
)

// SugarLabel introduces the auto-unwrap declaration sugar:
// `ref: x = expr` declares a reactive binding x.
const SugarLabel = "ref"

// scriptIdent is one identifier occurrence in script content.
// Offsets are local to the scanned text.
type scriptIdent struct {
	name     string
	start    uint32
	end      uint32
	dollar   bool // written as $name (raw-sigil usage)
	afterDot bool // member access, not a binding reference
}

// scriptDecl is one top-level declaration.
type scriptDecl struct {
	name      string
	nameRange sourcemap.Range
	keyword   string
}

// sugarDecl is one top-level `ref: x = expr` statement.
type sugarDecl struct {
	name       string
	labelStart uint32 // offset of the label word itself
	nameRange  sourcemap.Range
	exprRange  sourcemap.Range
	stmtEnd    uint32 // end of the whole statement (before ; or newline)
}

type scriptScan struct {
	idents []scriptIdent
	decls  []scriptDecl
	sugars []sugarDecl
}

func isIdentStart(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '_'
}

func isIdentByte(b byte) bool {
	return isIdentStart(b) || b >= '0' && b <= '9'
}

func isDeclKeyword(s string) bool {
	switch s {
	case "let", "const", "var", "function", "class":
		return true
	}
	return false
}

// scanScript walks script content once, skipping strings and comments, and
// collects identifiers, top-level declarations and sugar statements.
// It is a best-effort token scan, not a parser: the script engine owns the
// real grammar.
func scanScript(src string) scriptScan {
	var out scriptScan
	depth := 0
	i := 0
	n := len(src)
	lineStart := true

	skipString := func(quote byte) {
		i++ // opening quote
		for i < n {
			switch src[i] {
			case '\\':
				i += 2
				continue
			case quote:
				i++
				return
			}
			i++
		}
	}

	for i < n {
		b := src[i]
		switch {
		case b == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}
		case b == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		case b == '"' || b == '\'' || b == '`':
			skipString(b)
			lineStart = false
		case b == '{' || b == '(' || b == '[':
			depth++
			i++
			lineStart = false
		case b == '}' || b == ')' || b == ']':
			if depth > 0 {
				depth--
			}
			i++
			lineStart = false
		case b == '\n':
			lineStart = true
			i++
		case b == ' ' || b == '\t' || b == '\r' || b == ';':
			i++
		case b == '$' && i+1 < n && isIdentStart(src[i+1]):
			start := i
			i++
			for i < n && isIdentByte(src[i]) {
				i++
			}
			out.idents = append(out.idents, scriptIdent{
				name:   src[start+1 : i],
				start:  uint32(start),
				end:    uint32(i),
				dollar: true,
			})
			lineStart = false
		case isIdentStart(b):
			start := i
			for i < n && isIdentByte(src[i]) {
				i++
			}
			word := src[start:i]
			afterDot := start > 0 && src[start-1] == '.'
			out.idents = append(out.idents, scriptIdent{
				name:     word,
				start:    uint32(start),
				end:      uint32(i),
				afterDot: afterDot,
			})

			if depth == 0 && !afterDot {
				if isDeclKeyword(word) {
					if d, ok := scanDeclName(src, i); ok {
						out.decls = append(out.decls, scriptDecl{
							name:      d.name,
							nameRange: rng(d.start, d.end),
							keyword:   word,
						})
					}
				} else if word == SugarLabel && lineStart {
					if sg, ok := scanSugar(src, start, i); ok {
						out.sugars = append(out.sugars, sg)
					}
				}
			}
			lineStart = false
		default:
			i++
			lineStart = false
		}
	}
	return out
}

type namePos struct {
	name       string
	start, end uint32
}

// scanDeclName reads the identifier following a declaration keyword.
func scanDeclName(src string, from int) (namePos, bool) {
	i := from
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= len(src) || !isIdentStart(src[i]) {
		return namePos{}, false
	}
	start := i
	for i < len(src) && isIdentByte(src[i]) {
		i++
	}
	return namePos{name: src[start:i], start: uint32(start), end: uint32(i)}, true
}

// scanSugar parses `ref: x = expr` starting at the label.
// labelStart/labelEnd delimit the label word itself.
func scanSugar(src string, labelStart, labelEnd int) (sugarDecl, bool) {
	i := labelEnd
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= len(src) || src[i] != ':' {
		return sugarDecl{}, false
	}
	i++
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= len(src) || !isIdentStart(src[i]) {
		return sugarDecl{}, false
	}
	nameStart := i
	for i < len(src) && isIdentByte(src[i]) {
		i++
	}
	nameEnd := i
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	if i >= len(src) || src[i] != '=' || (i+1 < len(src) && src[i+1] == '=') {
		return sugarDecl{}, false
	}
	i++
	for i < len(src) && (src[i] == ' ' || src[i] == '\t') {
		i++
	}
	exprStart := i
	exprEnd := scanStatementEnd(src, i)
	if exprEnd <= exprStart {
		return sugarDecl{}, false
	}
	return sugarDecl{
		name:       src[nameStart:nameEnd],
		labelStart: uint32(labelStart),
		nameRange:  rng(uint32(nameStart), uint32(nameEnd)),
		exprRange:  rng(uint32(exprStart), uint32(exprEnd)),
		stmtEnd:    uint32(exprEnd),
	}, true
}

// scanStatementEnd finds the end of an expression statement: the first ';' or
// newline at bracket depth zero, strings and comments skipped.
func scanStatementEnd(src string, from int) int {
	depth := 0
	i := from
	n := len(src)
	for i < n {
		b := src[i]
		switch {
		case b == '/' && i+1 < n && src[i+1] == '/':
			return i
		case b == '"' || b == '\'' || b == '`':
			quote := b
			i++
			for i < n && src[i] != quote {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			i++
		case b == '{' || b == '(' || b == '[':
			depth++
			i++
		case b == '}' || b == ')' || b == ']':
			if depth == 0 {
				return i
			}
			depth--
			i++
		case (b == ';' || b == '\n') && depth == 0:
			return i
		default:
			i++
		}
	}
	return n
}
