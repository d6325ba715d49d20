package hud

import (
	"strings"

	"github.com/kr/text"
)

// WrapLine word-wraps s to at most width columns, returning one
// string per wrapped line. Used for overlay content (help/settings
// panels) where a long line should break at word boundaries before
// any remaining overflow gets hard-truncated by the writer.
func WrapLine(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	wrapped := text.Wrap(s, width)
	return strings.Split(wrapped, "\n")
}
