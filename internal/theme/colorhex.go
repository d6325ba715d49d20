package theme

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// HexToANSI24 parses a "#rrggbb" string and returns the 24-bit truecolor
// SGR escape sequence for it, for use as a foreground (or, if bg is true,
// background) color. Returns an error if hex isn't a valid color string.
func HexToANSI24(hex string, bg bool) (string, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return "", fmt.Errorf("theme: invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	if bg {
		return fmt.Sprintf("\x1b[48;2;%d;%d;%dm", r, g, b), nil
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm", r, g, b), nil
}

// ANSI24ToHex is the inverse of HexToANSI24: given r/g/b byte values it
// returns the canonical lowercase "#rrggbb" string, round-tripping through
// go-colorful so both directions agree on rounding.
func ANSI24ToHex(r, g, b uint8) string {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	return c.Hex()
}

// Blend linearly interpolates between two hex colors in Lab space at
// position t (0 = from, 1 = to), clamping t to [0, 1]. Used for gradient
// fills (e.g. a VU meter bar) where perceptual evenness matters more than
// raw RGB lerp.
func Blend(fromHex, toHex string, t float64) (string, error) {
	from, err := colorful.Hex(fromHex)
	if err != nil {
		return "", fmt.Errorf("theme: invalid color %q: %w", fromHex, err)
	}
	to, err := colorful.Hex(toHex)
	if err != nil {
		return "", fmt.Errorf("theme: invalid color %q: %w", toHex, err)
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return from.BlendLab(to, t).Hex(), nil
}
