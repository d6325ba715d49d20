package termfam

import (
	"os"

	"github.com/muesli/termenv"
)

// ColorMode is the color depth the theme layer may render at.
type ColorMode int

const (
	ColorModeNone ColorMode = iota
	ColorModeANSI
	ColorModeANSI256
	ColorModeTrueColor
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeANSI:
		return "ANSI"
	case ColorModeANSI256:
		return "ANSI256"
	case ColorModeTrueColor:
		return "TrueColor"
	default:
		return "NoColor"
	}
}

// ColorHints captures the host terminal's OSC 10/11 foreground/
// background colors and its color depth, queried once per process via
// termenv. When stdout isn't a tty, hints are empty.
type ColorHints struct {
	Mode          ColorMode
	OSCForeground string
	OSCBackground string
	DarkBackground bool
}

// DetectColorHints probes stdout's color capability and OSC 10/11
// query responses. It is safe to call from a non-tty process; it
// returns zero-value hints in that case.
func DetectColorHints() ColorHints {
	if os.Getenv("NO_COLOR") != "" {
		return ColorHints{Mode: ColorModeNone}
	}
	if !StdoutIsTerminal() {
		return ColorHints{}
	}

	output := termenv.NewOutput(os.Stdout)
	hints := ColorHints{
		Mode:           profileToMode(output.Profile),
		DarkBackground: output.HasDarkBackground(),
	}
	if fg := output.ForegroundColor(); fg != nil {
		hints.OSCForeground = fg.Sequence(false)
	}
	if bg := output.BackgroundColor(); bg != nil {
		hints.OSCBackground = bg.Sequence(true)
	}
	return hints
}

func profileToMode(p termenv.Profile) ColorMode {
	switch p {
	case termenv.TrueColor:
		return ColorModeTrueColor
	case termenv.ANSI256:
		return ColorModeANSI256
	case termenv.ANSI:
		return ColorModeANSI
	default:
		return ColorModeNone
	}
}
