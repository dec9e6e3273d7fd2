package diagfmt

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"sfcls/internal/diag"
	"sfcls/internal/source"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes с
// аналогичным форматом. Цвет включается опцией.
func Pretty(w io.Writer, bag *diag.Bag, docs *source.DocSet, opts PrettyOpts) {
	p := prettyPrinter{w: w, docs: docs, opts: opts}
	for _, d := range bag.Items() {
		p.printDiagnostic(d)
	}
}

type prettyPrinter struct {
	w    io.Writer
	docs *source.DocSet
	opts PrettyOpts
}

func (p *prettyPrinter) colorFor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		return color.New(color.FgYellow, color.Bold)
	case diag.SevInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgHiBlack)
	}
}

func (p *prettyPrinter) paint(c *color.Color, s string) string {
	if !p.opts.Color {
		return s
	}
	return c.Sprint(s)
}

func (p *prettyPrinter) displayPath(uri string) string {
	switch p.opts.PathMode {
	case PathModeBasename:
		return filepath.Base(uri)
	case PathModeRelative:
		if wd, err := filepath.Abs("."); err == nil {
			if rel, err := filepath.Rel(wd, uri); err == nil && !strings.HasPrefix(rel, "..") {
				return rel
			}
		}
	}
	return uri
}

func (p *prettyPrinter) printDiagnostic(d diag.Diagnostic) {
	p.printHeader(d.Severity, d.Code, d.Primary, d.Message)
	p.printContext(d.Primary, d.Severity)
	if p.opts.ShowNotes {
		for _, n := range d.Notes {
			p.printHeader(diag.SevHint, d.Code, n.Span, "note: "+n.Msg)
			if !n.Span.Empty() {
				p.printContext(n.Span, diag.SevHint)
			}
		}
	}
	if p.opts.ShowFixes {
		for _, f := range d.Fixes {
			fmt.Fprintf(p.w, "  fix: %s\n", f.Title)
		}
	}
}

func (p *prettyPrinter) printHeader(sev diag.Severity, code diag.Code, sp source.Span, msg string) {
	doc := p.docs.Get(sp.Doc)
	loc := "<unknown>"
	if doc != nil {
		start, _ := p.docs.Resolve(sp)
		loc = fmt.Sprintf("%s:%d:%d", p.displayPath(doc.URI), start.Line, start.Col)
	}
	sevStr := p.paint(p.colorFor(sev), strings.ToUpper(sev.String()))
	fmt.Fprintf(p.w, "%s: %s %s: %s\n", loc, sevStr, code, msg)
}

// printContext renders the primary line with a caret underline. Multi-line
// spans underline only their first line; the rest is context.
func (p *prettyPrinter) printContext(sp source.Span, sev diag.Severity) {
	doc := p.docs.Get(sp.Doc)
	if doc == nil {
		return
	}
	start, end := p.docs.Resolve(sp)

	first := start.Line
	if ctx := uint32(max(int(p.opts.Context), 0)); ctx > 0 && first > ctx {
		first -= ctx
	}
	gutter := len(fmt.Sprintf("%d", start.Line))

	for line := first; line <= start.Line; line++ {
		text := doc.GetLine(line)
		lineText := strings.TrimRight(text, "\n")
		if p.opts.Width > 0 {
			lineText = runewidth.Truncate(lineText, int(p.opts.Width), "…")
		}
		fmt.Fprintf(p.w, "  %*d | %s\n", gutter, line, lineText)
	}

	text := strings.TrimRight(doc.GetLine(start.Line), "\n")
	head := text
	if int(start.Col-1) <= len(text) {
		head = text[:start.Col-1]
	}
	pad := runewidth.StringWidth(head)

	span := 1
	if end.Line == start.Line && end.Col > start.Col {
		tailEnd := int(end.Col - 1)
		if tailEnd > len(text) {
			tailEnd = len(text)
		}
		span = runewidth.StringWidth(text[start.Col-1 : tailEnd])
		if span < 1 {
			span = 1
		}
	}
	marker := "^" + strings.Repeat("~", span-1)
	fmt.Fprintf(p.w, "  %s | %s%s\n",
		strings.Repeat(" ", gutter),
		strings.Repeat(" ", pad),
		p.paint(p.colorFor(sev), marker))
}
