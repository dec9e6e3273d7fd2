package diag

import (
	"sfcls/internal/source"
)

// Tag is a semantic marker attached by an engine, orthogonal to severity.
type Tag uint8

const (
	// TagUnnecessary marks dead or unused code; the unused-symbol passes
	// filter on it.
	TagUnnecessary Tag = 1 << iota
	TagDeprecated
)

type Note struct {
	Span source.Span
	Msg  string
}

type FixEdit struct {
	Span    source.Span
	NewText string
}

type Fix struct {
	Title string
	Edits []FixEdit
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  source.Span
	Tags     Tag
	Notes    []Note
	Fixes    []Fix
}

// HasTag reports whether the diagnostic carries the given tag.
func (d Diagnostic) HasTag(t Tag) bool {
	return d.Tags&t != 0
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(sp source.Span, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Msg: msg})
	return d
}

func (d Diagnostic) WithFix(title string, edits ...FixEdit) Diagnostic {
	d.Fixes = append(d.Fixes, Fix{Title: title, Edits: edits})
	return d
}

func (d Diagnostic) WithTag(t Tag) Diagnostic {
	d.Tags |= t
	return d
}
