// Package termfam classifies the host terminal emulator into a small
// family enum that the Output Writer uses to pick a cursor save/restore
// form and decide whether hiding the cursor during a redraw is safe, and
// detects the terminal's color capability for theme rendering.
package termfam

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Family is the terminal-emulator classification that governs render
// discipline (§4.3): which cursor save/restore escape form to use and
// whether the cursor may be hidden during a redraw.
type Family int

const (
	FamilyOther Family = iota
	FamilyJetBrains
	FamilyCursor
)

var (
	saveCursorCombined    = []byte("\x1b[s\x1b7")
	restoreCursorCombined = []byte("\x1b[u\x1b8")
	saveCursorDEC         = []byte("\x1b7")
	restoreCursorDEC      = []byte("\x1b8")
)

var jetbrainsHintKeys = []string{
	"PYCHARM_HOSTED",
	"JETBRAINS_IDE",
	"IDEA_INITIAL_DIRECTORY",
	"IDEA_INITIAL_PROJECT",
	"CLION_IDE",
	"WEBSTORM_IDE",
}

var cursorHintKeys = []string{
	"CURSOR_TRACE_ID",
	"CURSOR_APP_VERSION",
	"CURSOR_VERSION",
	"CURSOR_BUILD_VERSION",
}

func containsJetbrainsHint(value string) bool {
	v := strings.ToLower(value)
	return strings.Contains(v, "jetbrains") || strings.Contains(v, "jediterm") ||
		strings.Contains(v, "pycharm") || strings.Contains(v, "intellij") || strings.Contains(v, "idea")
}

func containsCursorHint(value string) bool {
	return strings.Contains(strings.ToLower(value), "cursor")
}

func nonEmptyEnv(key string) bool {
	return strings.TrimSpace(os.Getenv(key)) != ""
}

func detectFamily() Family {
	for _, key := range jetbrainsHintKeys {
		if nonEmptyEnv(key) {
			return FamilyJetBrains
		}
	}
	for _, key := range []string{"TERM_PROGRAM", "TERMINAL_EMULATOR"} {
		if v := os.Getenv(key); v != "" && containsJetbrainsHint(v) {
			return FamilyJetBrains
		}
	}
	for _, key := range []string{"TERM_PROGRAM", "TERMINAL_EMULATOR"} {
		if v := os.Getenv(key); v != "" && containsCursorHint(v) {
			return FamilyCursor
		}
	}
	for _, key := range cursorHintKeys {
		if nonEmptyEnv(key) {
			return FamilyCursor
		}
	}
	return FamilyOther
}

var (
	familyOnce   sync.Once
	familyCached Family
)

// Detect classifies the host terminal once per process and caches the
// result; detection only reads environment hints so it is stable for
// the process lifetime.
func Detect() Family {
	familyOnce.Do(func() {
		familyCached = detectFamily()
	})
	return familyCached
}

// SaveCursorSequence returns the escape bytes that save cursor position
// for the redraw that's about to happen.
func SaveCursorSequence(f Family) []byte {
	if f == FamilyJetBrains {
		return saveCursorDEC
	}
	return saveCursorCombined
}

// RestoreCursorSequence is the counterpart to SaveCursorSequence.
func RestoreCursorSequence(f Family) []byte {
	if f == FamilyJetBrains {
		return restoreCursorDEC
	}
	return restoreCursorCombined
}

// ShouldDisableAutowrap reports whether the writer should toggle
// autowrap off for the duration of a row-absolute redraw. Only
// JetBrains terminals need it; others handle row-absolute writes fine
// with autowrap left alone.
func ShouldDisableAutowrap(f Family) bool {
	return f == FamilyJetBrains
}

// ShouldHideCursor reports whether the writer may hide/show the cursor
// around a redraw. Only JetBrains: on other terminals (especially when
// wrapping Claude Code) toggling cursor visibility on every redraw
// fights the backend's own cursor management and produces a flickering
// block cursor.
func ShouldHideCursor(f Family) bool {
	return f == FamilyJetBrains
}

// StdoutIsTerminal reports whether stdout is attached to a real tty.
func StdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
