// Package geometry computes how many terminal rows VoiceTerm reserves
// for its own chrome (HUD + any active overlay) for a given frame, and
// reconciles that against the PTY child's winsize.
package geometry

// OverlayMode names which overlay, if any, currently occupies the
// bottom of the screen in addition to the HUD bar. At most one is
// active at a time (§3).
type OverlayMode int

const (
	OverlayNone OverlayMode = iota
	OverlayHelp
	OverlaySettings
	OverlayThemePicker
	OverlayThemeStudio
	OverlayTranscriptHistory
	OverlayToastHistory
	OverlayDevPanel
)

// HUDStyle selects how many rows the HUD bar itself occupies when no
// overlay is active.
type HUDStyle int

const (
	HUDStyleFull    HUDStyle = iota // status + input rows
	HUDStyleMinimal                 // single status row
	HUDStyleHidden                  // no HUD chrome at all
)

// CLIBackend is which backend program is running inside the PTY. Claude
// Code draws its own prompt composer near the bottom of the screen, so
// it needs extra reserved rows that a generic backend doesn't.
type CLIBackend int

const (
	BackendGeneric CLIBackend = iota
	BackendClaude
)

const (
	safetyGapRows    = 1
	claudeExtraGap   = 1
)

// Frame is the input to the reserved-rows computation.
type Frame struct {
	Overlay          OverlayMode
	Cols             int
	HUDStyle         HUDStyle
	Backend          CLIBackend
	PromptSuppressed bool
	OverlayHeight    int // only consulted when Overlay != OverlayNone
}

// ReservedRows returns how many of the terminal's rows, counted from the
// bottom, VoiceTerm's own chrome occupies. It is a pure function: calling
// it twice with the same Frame always returns the same value.
func ReservedRows(f Frame) int {
	if f.Overlay != OverlayNone {
		h := f.OverlayHeight
		if h < 1 {
			h = 1
		}
		return h
	}

	// Prompt suppression (the backend's own composer is hidden) drops the
	// HUD budget to its suppressed height for everyone except Claude:
	// Claude's composer reappears unpredictably, so collapsing and then
	// re-expanding the reserved rows around it causes a visible jump.
	if f.PromptSuppressed && f.Backend != BackendClaude {
		return suppressedHudRows(f.HUDStyle)
	}

	rows := hudRows(f.HUDStyle) + safetyGapRows
	if f.Backend == BackendClaude {
		rows += claudeExtraGap
	}
	return rows
}

func hudRows(style HUDStyle) int {
	switch style {
	case HUDStyleFull:
		return 2
	case HUDStyleMinimal:
		return 1
	default:
		return 0
	}
}

func suppressedHudRows(style HUDStyle) int {
	return 0
}

// ChildRows returns the number of rows the PTY child should be told it
// has, given the real terminal height and the chrome computed above.
// Never returns less than 1.
func ChildRows(totalRows int, reserved int) int {
	r := totalRows - reserved
	if r < 1 {
		r = 1
	}
	return r
}
