// Package config is the boundary for VoiceTerm's persistent
// configuration: the flag-derived AppConfig every CLI invocation
// builds, named profiles that supply defaults for it, and the theme
// lock that pins a resolved theme/capability snapshot across restarts.
// Persistent config serialization itself is named an external
// collaborator in spec §1; this package fixes the shape and ships a
// YAML-backed default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the resolved set of flag-derived settings the event loop
// and voice pipeline read from, one field per CLI flag group in spec §6.
type AppConfig struct {
	Backend string `yaml:"backend,omitempty"`

	AutoVoice     bool   `yaml:"auto_voice,omitempty"`
	VoiceSendMode string `yaml:"voice_send_mode,omitempty"` // "auto" | "insert"

	WakeWord             bool    `yaml:"wake_word,omitempty"`
	WakeWordSensitivity  float64 `yaml:"wake_word_sensitivity,omitempty"`
	WakeWordCooldownMS   int     `yaml:"wake_word_cooldown_ms,omitempty"`

	VADThresholdDB       float64 `yaml:"voice_vad_threshold_db,omitempty"`
	VADFrameMS           int     `yaml:"voice_vad_frame_ms,omitempty"`
	SilenceTailMS        int     `yaml:"voice_silence_tail_ms,omitempty"`
	MinSpeechMSBeforeSTT int     `yaml:"voice_min_speech_ms_before_stt,omitempty"`
	LookbackMS           int     `yaml:"voice_lookback_ms,omitempty"`
	BufferMS             int     `yaml:"voice_buffer_ms,omitempty"`
	MaxCaptureMS         int     `yaml:"voice_max_capture_ms,omitempty"`

	TranscriptIdleMS int `yaml:"transcript_idle_ms,omitempty"`

	HUDStyle string `yaml:"hud_style,omitempty"`
	NoColor  bool   `yaml:"no_color,omitempty"`
	Theme    string `yaml:"theme,omitempty"`

	DebugKeys   bool `yaml:"debug_keys,omitempty"`
	DebugScroll bool `yaml:"debug_scroll,omitempty"`
}

// Defaults returns the baseline AppConfig used when no profile and no
// flag overrides are present, matching the cadences and thresholds
// spec §9 calls out as tuned-from-the-source constants.
func Defaults() AppConfig {
	return AppConfig{
		Backend:              "claude",
		VoiceSendMode:        "auto",
		WakeWordSensitivity:  0.5,
		WakeWordCooldownMS:   1500,
		VADThresholdDB:       -45,
		VADFrameMS:           20,
		SilenceTailMS:        600,
		MinSpeechMSBeforeSTT: 150,
		LookbackMS:           300,
		BufferMS:             30000,
		MaxCaptureMS:         60000,
		TranscriptIdleMS:     1200,
		HUDStyle:             "full",
	}
}

// Merge overlays non-zero fields of override onto a copy of c, used to
// layer profile settings over Defaults() and flag values over that.
func (c AppConfig) Merge(override AppConfig) AppConfig {
	out := c
	if override.Backend != "" {
		out.Backend = override.Backend
	}
	if override.VoiceSendMode != "" {
		out.VoiceSendMode = override.VoiceSendMode
	}
	if override.WakeWordSensitivity != 0 {
		out.WakeWordSensitivity = override.WakeWordSensitivity
	}
	if override.WakeWordCooldownMS != 0 {
		out.WakeWordCooldownMS = override.WakeWordCooldownMS
	}
	if override.VADThresholdDB != 0 {
		out.VADThresholdDB = override.VADThresholdDB
	}
	if override.VADFrameMS != 0 {
		out.VADFrameMS = override.VADFrameMS
	}
	if override.SilenceTailMS != 0 {
		out.SilenceTailMS = override.SilenceTailMS
	}
	if override.MinSpeechMSBeforeSTT != 0 {
		out.MinSpeechMSBeforeSTT = override.MinSpeechMSBeforeSTT
	}
	if override.LookbackMS != 0 {
		out.LookbackMS = override.LookbackMS
	}
	if override.BufferMS != 0 {
		out.BufferMS = override.BufferMS
	}
	if override.MaxCaptureMS != 0 {
		out.MaxCaptureMS = override.MaxCaptureMS
	}
	if override.TranscriptIdleMS != 0 {
		out.TranscriptIdleMS = override.TranscriptIdleMS
	}
	if override.HUDStyle != "" {
		out.HUDStyle = override.HUDStyle
	}
	if override.Theme != "" {
		out.Theme = override.Theme
	}
	out.AutoVoice = out.AutoVoice || override.AutoVoice
	out.WakeWord = out.WakeWord || override.WakeWord
	out.NoColor = out.NoColor || override.NoColor
	out.DebugKeys = out.DebugKeys || override.DebugKeys
	out.DebugScroll = out.DebugScroll || override.DebugScroll
	return out
}

// ConfigDir returns VoiceTerm's configuration directory (~/.voiceterm/),
// overridable via VOICETERM_DIR for tests and multi-profile setups.
func ConfigDir() string {
	if dir := os.Getenv("VOICETERM_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".voiceterm")
	}
	return filepath.Join(home, ".voiceterm")
}

// ProfilesDir returns the directory named profiles are loaded from.
func ProfilesDir() string {
	return filepath.Join(ConfigDir(), "profiles")
}

// Load reads VoiceTerm's top-level config from ~/.voiceterm/config.yaml.
// If the file does not exist, it returns Defaults() with no error,
// matching the teacher's load-or-default pattern.
func Load() (*AppConfig, error) {
	return LoadFrom(filepath.Join(ConfigDir(), "config.yaml"))
}

// LoadFrom reads an AppConfig from the given YAML path.
func LoadFrom(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Defaults()
			return &cfg, nil
		}
		return nil, err
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadProfile loads a named profile's AppConfig overrides from
// ~/.voiceterm/profiles/<name>.yaml, the VoiceTerm analogue of the
// teacher's role-templates (config.LoadRole), minus the role's
// agent-process-launch fields VoiceTerm has no equivalent of — a
// profile here is purely an AppConfig override set.
func LoadProfile(name string) (*AppConfig, error) {
	return LoadProfileFrom(filepath.Join(ProfilesDir(), name+".yaml"))
}

// LoadProfileFrom loads a profile override set from the given path.
func LoadProfileFrom(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	var override AppConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse profile YAML: %w", err)
	}
	return &override, nil
}

// ThemeLock pins the theme name and negotiated capability snapshot a
// session resolved to, so a later invocation on the same terminal
// doesn't need to re-probe OSC 10/11 queries and risk a different
// answer mid-session. Read from the VOICETERM_STYLE_PACK_JSON
// environment variable spec §9 names, or from a lock file on disk.
type ThemeLock struct {
	Theme      string    `json:"theme"`
	ColorMode  string    `json:"color_mode"`
	DarkBG     bool      `json:"dark_background"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// LoadThemeLock reads a theme lock from the VOICETERM_STYLE_PACK_JSON
// environment variable if set, else from ~/.voiceterm/theme.lock. It
// returns (nil, nil) when neither is present — locking is optional.
func LoadThemeLock() (*ThemeLock, error) {
	if raw := os.Getenv("VOICETERM_STYLE_PACK_JSON"); raw != "" {
		var lock ThemeLock
		if err := json.Unmarshal([]byte(raw), &lock); err != nil {
			return nil, fmt.Errorf("parse VOICETERM_STYLE_PACK_JSON: %w", err)
		}
		return &lock, nil
	}
	data, err := os.ReadFile(filepath.Join(ConfigDir(), "theme.lock"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var lock ThemeLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse theme.lock: %w", err)
	}
	return &lock, nil
}

// SaveThemeLock writes the resolved theme lock to disk so subsequent
// invocations in the same terminal reuse it instead of re-probing.
func SaveThemeLock(lock ThemeLock) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("marshal theme lock: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "theme.lock"), data, 0o644)
}
