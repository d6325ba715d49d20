package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Backend != Defaults().Backend {
		t.Errorf("Backend = %q, want default %q", cfg.Backend, Defaults().Backend)
	}
}

func TestLoadFromValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "backend: codex\nhud_style: minimal\nauto_voice: true\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Backend != "codex" {
		t.Errorf("Backend = %q, want codex", cfg.Backend)
	}
	if cfg.HUDStyle != "minimal" {
		t.Errorf("HUDStyle = %q, want minimal", cfg.HUDStyle)
	}
	if !cfg.AutoVoice {
		t.Error("expected auto_voice true")
	}
	if cfg.VoiceSendMode != Defaults().VoiceSendMode {
		t.Errorf("unset fields should keep defaults, got VoiceSendMode = %q", cfg.VoiceSendMode)
	}
}

func TestLoadFromInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadProfileFromReturnsOverridesOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "night-shift.yaml")
	if err := os.WriteFile(path, []byte("wake_word: true\nwake_word_sensitivity: 0.8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	override, err := LoadProfileFrom(path)
	if err != nil {
		t.Fatalf("LoadProfileFrom: %v", err)
	}
	if !override.WakeWord || override.WakeWordSensitivity != 0.8 {
		t.Fatalf("got %+v, want wake word overrides applied", override)
	}
	if override.Backend != "" {
		t.Errorf("expected unset Backend in a sparse override, got %q", override.Backend)
	}
}

func TestLoadProfileMissingFileErrors(t *testing.T) {
	if _, err := LoadProfile("does-not-exist"); err == nil {
		t.Fatal("expected error for a missing profile")
	}
}

func TestMergeAppliesOverrideOverBase(t *testing.T) {
	base := Defaults()
	override := AppConfig{Backend: "codex", WakeWord: true}
	merged := base.Merge(override)
	if merged.Backend != "codex" {
		t.Errorf("Backend = %q, want codex", merged.Backend)
	}
	if !merged.WakeWord {
		t.Error("expected WakeWord true after merge")
	}
	if merged.VADThresholdDB != base.VADThresholdDB {
		t.Errorf("unrelated field VADThresholdDB changed by merge: got %v, want %v", merged.VADThresholdDB, base.VADThresholdDB)
	}
}

func TestLoadThemeLockFromEnv(t *testing.T) {
	lock := ThemeLock{Theme: "midnight", ColorMode: "truecolor", DarkBG: true}
	data, err := json.Marshal(lock)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICETERM_STYLE_PACK_JSON", string(data))

	got, err := LoadThemeLock()
	if err != nil {
		t.Fatalf("LoadThemeLock: %v", err)
	}
	if got == nil || got.Theme != "midnight" {
		t.Fatalf("got %+v, want theme midnight", got)
	}
}

func TestLoadThemeLockMissingReturnsNilNoError(t *testing.T) {
	t.Setenv("VOICETERM_STYLE_PACK_JSON", "")
	t.Setenv("VOICETERM_DIR", t.TempDir())

	got, err := LoadThemeLock()
	if err != nil {
		t.Fatalf("expected no error when no lock present, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil lock, got %+v", got)
	}
}

func TestSaveThemeLockRoundTrips(t *testing.T) {
	t.Setenv("VOICETERM_DIR", t.TempDir())
	t.Setenv("VOICETERM_STYLE_PACK_JSON", "")

	want := ThemeLock{Theme: "solarized", ColorMode: "ansi256"}
	if err := SaveThemeLock(want); err != nil {
		t.Fatalf("SaveThemeLock: %v", err)
	}
	got, err := LoadThemeLock()
	if err != nil {
		t.Fatalf("LoadThemeLock: %v", err)
	}
	if got == nil || got.Theme != want.Theme || got.ColorMode != want.ColorMode {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
