package overlay

import "fmt"

// SettingsView is the state the settings overlay renders. Only the
// fields a row formats are read. The event loop updates Selected only;
// every other field shows whatever the caller stored in it.
type SettingsView struct {
	Selected int

	AutoVoiceEnabled      bool
	WakeWordEnabled       bool
	WakeWordSensitivity   float64 // 0..1
	WakeWordCooldownMS    int
	SendModeInsert        bool
	ImageModeEnabled      bool
	MacrosEnabled         bool
	SensitivityDB         float64
	Theme                 string
	ThemeLocked           bool
	HUDStyle              string
	HUDBorderStyle        string
	HUDRightPanel         string
	HUDAnimateRecordOnly  bool
	LatencyDisplay        string
	MouseEnabled          bool
	BackendLabel          string
	PipelineLabel         string
}

type settingsRow struct {
	label    string
	value    func(SettingsView) string
	readOnly bool
}

var settingsRows = []settingsRow{
	{"Auto-voice", func(v SettingsView) string { return toggleLabel(v.AutoVoiceEnabled) }, false},
	{"Wake word", func(v SettingsView) string { return toggleLabel(v.WakeWordEnabled) }, false},
	{"Wake sensitivity", func(v SettingsView) string {
		return fmt.Sprintf("%.0f%% (0-100%%)", v.WakeWordSensitivity*100)
	}, false},
	{"Wake cooldown", func(v SettingsView) string { return fmt.Sprintf("%d ms", v.WakeWordCooldownMS) }, false},
	{"Send mode", func(v SettingsView) string {
		if v.SendModeInsert {
			return "Edit"
		}
		return "Auto"
	}, false},
	{"Image persist", func(v SettingsView) string { return toggleLabel(v.ImageModeEnabled) }, false},
	{"Macros", func(v SettingsView) string { return toggleLabel(v.MacrosEnabled) }, false},
	{"Sensitivity", func(v SettingsView) string { return fmt.Sprintf("%.0f dB (-80..-10)", v.SensitivityDB) }, false},
	{"Theme", func(v SettingsView) string {
		if v.ThemeLocked {
			return v.Theme + " (locked)"
		}
		return v.Theme
	}, false},
	{"HUD style", func(v SettingsView) string { return v.HUDStyle }, false},
	{"Borders", func(v SettingsView) string { return v.HUDBorderStyle }, false},
	{"Right panel", func(v SettingsView) string { return v.HUDRightPanel }, false},
	{"Anim rec-only", func(v SettingsView) string { return toggleLabel(v.HUDAnimateRecordOnly) }, false},
	{"Latency", func(v SettingsView) string { return v.LatencyDisplay }, false},
	{"Mouse", func(v SettingsView) string { return toggleLabel(v.MouseEnabled) }, false},
	{"Backend", func(v SettingsView) string { return v.BackendLabel + " (read-only)" }, true},
	{"Pipeline", func(v SettingsView) string { return v.PipelineLabel + " (read-only)" }, true},
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "ON"
	}
	return "OFF"
}

// Settings is the in-app settings overlay content provider.
type Settings struct {
	View SettingsView
}

const settingsLabelWidth = 15

// Lines implements Overlay.
func (s Settings) Lines(cols int) []string {
	out := make([]string, 0, len(settingsRows)+2)
	out = append(out, "VoiceTerm Settings", "")
	for i, row := range settingsRows {
		marker := " "
		if i == s.View.Selected {
			marker = ">"
		}
		out = append(out, fmt.Sprintf("%s %-*s %s", marker, settingsLabelWidth, row.label, row.value(s.View)))
	}
	out = append(out, "", "[Esc] close · ↑/↓ move · Enter select · Click/Tap select")
	return out
}

// Height implements Overlay.
func (s Settings) Height(cols int) int {
	return len(s.Lines(cols))
}

// SettingsRowCount reports how many selectable rows the settings
// overlay has, for callers driving Selected with arrow keys.
func SettingsRowCount() int {
	return len(settingsRows)
}
