package overlay

import "voiceterm/internal/hud"

// Help is the static keybinding reference shown by the help overlay.
type Help struct{}

var helpEntries = [][2]string{
	{"voice-trigger hotkey", "start/stop a capture"},
	{"auto-voice toggle", "re-arm capture automatically after each turn"},
	{"Ctrl+E", "send staged text (Insert send mode)"},
	{"sensitivity +/-", "adjust wake-word sensitivity"},
	{"HUD style", "cycle Full / Minimal / Hidden"},
	{"theme overlay", "open the theme picker"},
	{"settings overlay", "open this panel's neighbor"},
	{"arrow keys", "up/down move the settings selection while settings is open; otherwise forwarded to the PTY"},
	{"mouse click", "resolved through the button registry"},
	{"Enter", "forwarded to the PTY; also marks last-enter for prompt tracking"},
	{"exit", "close the session and restore the terminal"},
}

// Lines implements Overlay.
func (Help) Lines(cols int) []string {
	out := []string{"Keybindings", ""}
	for _, e := range helpEntries {
		out = append(out, hud.WrapLine(e[0]+" — "+e[1], cols)...)
	}
	return out
}

// Height implements Overlay.
func (Help) Height(cols int) int {
	return len(Help{}.Lines(cols))
}
