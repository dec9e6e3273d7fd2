package diagfmt

import (
	"strings"
	"testing"
)

func TestSnippet(t *testing.T) {
	content := "<div>\n  <span>\n</div>\n"
	out := Snippet(content, 8, 14, 1)

	if !strings.Contains(out, "1 | <div>") {
		t.Errorf("missing first line:\n%s", out)
	}
	if !strings.Contains(out, "2 |   <span>") {
		t.Errorf("missing second line:\n%s", out)
	}
	if !strings.Contains(out, "^~~~~") {
		t.Errorf("missing underline:\n%s", out)
	}
}

func TestSnippetFirstLineOffset(t *testing.T) {
	out := Snippet("a\nb", 0, 0, 41)
	if !strings.Contains(out, "41 | a") || !strings.Contains(out, "42 | b") {
		t.Errorf("line numbering wrong:\n%s", out)
	}
}

func TestSnippetOutOfRange(t *testing.T) {
	// Ranges beyond the content degrade to no underline, never a panic.
	out := Snippet("short", 99, 200, 1)
	if !strings.Contains(out, "1 | short") {
		t.Errorf("content lost:\n%s", out)
	}
	if strings.Contains(out, "^") {
		t.Errorf("underline emitted for unmappable range:\n%s", out)
	}
}
