package diag

import (
	"fmt"
)

type Code uint16

const (
	// UnknownCode covers diagnostics forwarded from an engine without a
	// recognized category.
	UnknownCode Code = 0

	// Component-file structure.
	BlockScriptMissing Code = 1001

	// Template layer.
	TmplCompileError  Code = 2001
	TmplUnmappedError Code = 2002 // position lost; message carries the snippet

	// Style layer.
	StyleInvalid Code = 3001

	// Script layer categories, mirrored for the template-script layer.
	ScriptSemantic   Code = 4001
	ScriptSyntactic  Code = 4002
	ScriptSuggestion Code = 4003
	ScriptUnused     Code = 4004
)

func (c Code) String() string {
	return fmt.Sprintf("SFC%04d", uint16(c))
}
