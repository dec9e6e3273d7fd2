package diagfmt

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Snippet renders a gutter-numbered excerpt of content for embedding into a
// diagnostic message, underlining [start, end) when the range is non-empty.
// Offsets are local to content; firstLine numbers the excerpt's first line.
// Formatting failures never escape: the raw excerpt plus the serialized
// error is returned instead, so the caller always gets something to show.
func Snippet(content string, start, end uint32, firstLine uint32) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content + fmt.Sprintf("\n(snippet formatting failed: %v)", r)
		}
	}()
	return renderSnippet(content, start, end, firstLine)
}

func renderSnippet(content string, start, end uint32, firstLine uint32) string {
	if int(start) > len(content) {
		start = uint32(len(content))
	}
	if end < start || int(end) > len(content) {
		end = start
	}
	if firstLine == 0 {
		firstLine = 1
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	lastLine := firstLine + uint32(len(lines)) - 1
	gutter := len(fmt.Sprintf("%d", lastLine))

	var b strings.Builder
	off := uint32(0)
	for i, line := range lines {
		num := firstLine + uint32(i)
		fmt.Fprintf(&b, "%*d | %s\n", gutter, num, line)

		lineEnd := off + uint32(len(line))
		if start < end && start >= off && start <= lineEnd {
			head := line
			if int(start-off) <= len(line) {
				head = line[:start-off]
			}
			tail := end
			if tail > lineEnd {
				tail = lineEnd
			}
			span := runewidth.StringWidth(line[start-off : tail-off])
			if span < 1 {
				span = 1
			}
			fmt.Fprintf(&b, "%s | %s%s\n",
				strings.Repeat(" ", gutter),
				strings.Repeat(" ", runewidth.StringWidth(head)),
				"^"+strings.Repeat("~", span-1))
		}
		off = lineEnd + 1
	}
	return strings.TrimRight(b.String(), "\n")
}
