package writer

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// ansiReset is appended when Truncate cuts a string while an SGR span
// (set by some escape other than a reset) is still open, so a
// truncated colored line never bleeds its color into whatever the
// writer paints after it.
const ansiReset = "\x1b[0m"

// DisplayWidth returns the terminal column width of s, skipping over
// ANSI escape sequences entirely (they never occupy a column) and
// measuring visible text grapheme-cluster by grapheme-cluster so
// combining marks and wide runes are accounted for correctly.
func DisplayWidth(s string) int {
	width := 0
	for _, seg := range splitANSI(s) {
		if seg.isEscape {
			continue
		}
		width += textWidth(seg.text)
	}
	return width
}

// Truncate cuts s to at most maxWidth display columns, passing ANSI
// escape sequences through untouched (they don't count against the
// budget) and never splitting a grapheme cluster. If the cut happens
// while a non-reset SGR sequence is still open, a reset is appended so
// the truncated line doesn't leak color into whatever follows it.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	var b strings.Builder
	width := 0
	colorOpen := false
	truncated := false

	for _, seg := range splitANSI(s) {
		if seg.isEscape {
			b.WriteString(seg.text)
			colorOpen = sgrOpensColor(seg.text, colorOpen)
			continue
		}
		gr := uniseg.NewGraphemes(seg.text)
		for gr.Next() {
			cluster := gr.Str()
			w := textWidth(cluster)
			if width+w > maxWidth {
				truncated = true
				break
			}
			b.WriteString(cluster)
			width += w
		}
		if truncated {
			break
		}
	}

	if truncated && colorOpen {
		b.WriteString(ansiReset)
	}
	return b.String()
}

func textWidth(s string) int {
	width := 0
	gr := uniseg.NewGraphemes(s)
	for gr.Next() {
		cluster := gr.Runes()
		w := 0
		for _, r := range cluster {
			if rw := runewidth.RuneWidth(r); rw > w {
				w = rw
			}
		}
		width += w
	}
	return width
}

// sgrOpensColor tracks whether the most recently seen SGR (Select
// Graphic Rendition) escape leaves a non-default color/attribute span
// open. A bare reset ("\x1b[0m", "\x1b[m", or empty params) closes it.
func sgrOpensColor(escape string, previouslyOpen bool) bool {
	if !strings.HasSuffix(escape, "m") || !strings.HasPrefix(escape, "\x1b[") {
		return previouslyOpen
	}
	params := strings.TrimSuffix(strings.TrimPrefix(escape, "\x1b["), "m")
	if params == "" || params == "0" {
		return false
	}
	return true
}

type ansiSegment struct {
	text     string
	isEscape bool
}

// splitANSI walks s and splits it into alternating plain-text and
// escape-sequence segments. It recognizes CSI sequences
// (ESC '[' ... final-byte), OSC sequences (ESC ']' ... BEL or ST), and
// the common two-byte C1 forms (ESC followed by a single byte, e.g.
// DECSC/DECRC).
func splitANSI(s string) []ansiSegment {
	var segs []ansiSegment
	var plain strings.Builder
	flushPlain := func() {
		if plain.Len() > 0 {
			segs = append(segs, ansiSegment{text: plain.String()})
			plain.Reset()
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); {
		if runes[i] != 0x1b {
			plain.WriteRune(runes[i])
			i++
			continue
		}
		flushPlain()
		start := i
		i++
		if i >= len(runes) {
			segs = append(segs, ansiSegment{text: string(runes[start:]), isEscape: true})
			break
		}
		switch runes[i] {
		case '[':
			i++
			for i < len(runes) && (runes[i] < 0x40 || runes[i] > 0x7e) {
				i++
			}
			if i < len(runes) {
				i++
			}
		case ']':
			i++
			for i < len(runes) {
				if runes[i] == 0x07 {
					i++
					break
				}
				if runes[i] == 0x1b && i+1 < len(runes) && runes[i+1] == '\\' {
					i += 2
					break
				}
				i++
			}
		default:
			i++
		}
		segs = append(segs, ansiSegment{text: string(runes[start:i]), isEscape: true})
	}
	flushPlain()
	return segs
}
