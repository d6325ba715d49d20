// Package theme resolves which rendering features a theme may use for a
// given terminal's detected color capability. Theme palette definitions
// and overlay rendering are out of scope here; this package only answers
// "what is this session allowed to draw with."
package theme

import "voiceterm/internal/termfam"

// Feature is a rendering capability a theme may depend on.
type Feature int

const (
	// FeatureTrueColorGradient is 24-bit RGB interpolation between two
	// palette colors (e.g. a smooth VU meter gradient).
	FeatureTrueColorGradient Feature = iota
	// Feature256Palette is indexed 256-color output.
	Feature256Palette
	// FeatureANSI16 is the basic 16-color ANSI palette.
	FeatureANSI16
	// FeatureMonochrome is no color at all, only SGR bold/reverse/underline.
	FeatureMonochrome
)

func (f Feature) String() string {
	switch f {
	case FeatureTrueColorGradient:
		return "truecolor-gradient"
	case Feature256Palette:
		return "256-palette"
	case FeatureANSI16:
		return "ansi16"
	default:
		return "monochrome"
	}
}

// featureChain is ordered richest to most basic. Resolve walks it to find
// the best feature the detected color mode can still render.
var featureChain = []Feature{
	FeatureTrueColorGradient,
	Feature256Palette,
	FeatureANSI16,
	FeatureMonochrome,
}

// maxFeatureForMode is the richest feature a given color mode supports.
func maxFeatureForMode(mode termfam.ColorMode) Feature {
	switch mode {
	case termfam.ColorModeTrueColor:
		return FeatureTrueColorGradient
	case termfam.ColorModeANSI256:
		return Feature256Palette
	case termfam.ColorModeANSI:
		return FeatureANSI16
	default:
		return FeatureMonochrome
	}
}

// rank returns the chain position of f; lower is richer.
func rank(f Feature) int {
	for i, c := range featureChain {
		if c == f {
			return i
		}
	}
	return len(featureChain) - 1
}

// Resolve returns the feature a theme should actually use given the
// terminal's detected color mode and the feature it would prefer to use.
// If the preferred feature needs more than the terminal supports, Resolve
// walks the chain down to the richest feature the mode can still render.
func Resolve(mode termfam.ColorMode, preferred Feature) Feature {
	max := maxFeatureForMode(mode)
	if rank(preferred) >= rank(max) {
		return preferred
	}
	for _, f := range featureChain {
		if rank(f) >= rank(max) {
			return f
		}
	}
	return FeatureMonochrome
}

// Capabilities is the resolved feature set for a session's detected
// color mode, computed once at startup from termfam.ColorHints and
// stored on the event loop (eventloop.Loop.Theme). The Output Writer and
// HUD do not read it.
type Capabilities struct {
	Mode        termfam.ColorMode
	MaxFeature  Feature
	DarkBG      bool
}

// Negotiate builds a Capabilities snapshot from detected color hints.
func Negotiate(hints termfam.ColorHints) Capabilities {
	return Capabilities{
		Mode:       hints.Mode,
		MaxFeature: maxFeatureForMode(hints.Mode),
		DarkBG:     hints.DarkBackground,
	}
}

// Supports reports whether the negotiated capabilities can render f
// without falling back.
func (c Capabilities) Supports(f Feature) bool {
	return rank(f) >= rank(c.MaxFeature)
}

// ResolveFeature is Resolve bound to this capability snapshot.
func (c Capabilities) ResolveFeature(preferred Feature) Feature {
	return Resolve(c.Mode, preferred)
}
