package overlay

import (
	"strings"
	"testing"
)

func TestSettingsLinesIncludesSelectedMarker(t *testing.T) {
	s := Settings{View: SettingsView{Selected: 2, WakeWordSensitivity: 0.5}}
	lines := s.Lines(80)
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, ">") && strings.Contains(l, "Wake sensitivity") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected selected row 2 (Wake sensitivity) to carry the > marker, got %v", lines)
	}
}

func TestSettingsLinesShowsToggleState(t *testing.T) {
	s := Settings{View: SettingsView{AutoVoiceEnabled: true}}
	lines := s.Lines(80)
	if !strings.Contains(lines[2], "ON") {
		t.Fatalf("got %q, want Auto-voice row to show ON", lines[2])
	}
}

func TestSettingsLinesMarksBackendReadOnly(t *testing.T) {
	s := Settings{View: SettingsView{BackendLabel: "claude"}}
	lines := s.Lines(80)
	var backendLine string
	for _, l := range lines {
		if strings.Contains(l, "Backend") {
			backendLine = l
		}
	}
	if !strings.Contains(backendLine, "read-only") {
		t.Fatalf("got %q, want backend row marked read-only", backendLine)
	}
}

func TestSettingsHeightMatchesLines(t *testing.T) {
	s := Settings{}
	if got, want := s.Height(80), len(s.Lines(80)); got != want {
		t.Fatalf("got height %d, want %d", got, want)
	}
}

func TestSettingsSatisfiesOverlayInterface(t *testing.T) {
	var _ Overlay = Settings{}
}
