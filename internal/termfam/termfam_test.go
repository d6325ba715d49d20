package termfam

import "testing"

func TestContainsJetbrainsHintMatchesKnownValues(t *testing.T) {
	cases := map[string]bool{
		"JetBrains-JediTerm": true,
		"PyCharm":            true,
		"IntelliJ":           true,
		"xterm-256color":     false,
		"cursor":             false,
	}
	for in, want := range cases {
		if got := containsJetbrainsHint(in); got != want {
			t.Errorf("containsJetbrainsHint(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContainsCursorHintMatchesKnownValues(t *testing.T) {
	cases := map[string]bool{
		"cursor":             true,
		"Cursor":             true,
		"vscode":             false,
		"JetBrains-JediTerm": false,
	}
	for in, want := range cases {
		if got := containsCursorHint(in); got != want {
			t.Errorf("containsCursorHint(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestDetectFamilyPrefersJetBrainsHintKeys(t *testing.T) {
	clearFamilyEnv(t)
	t.Setenv("PYCHARM_HOSTED", "1")
	if got := detectFamily(); got != FamilyJetBrains {
		t.Fatalf("got %v, want FamilyJetBrains", got)
	}
}

func TestDetectFamilyDetectsCursorFromTermProgram(t *testing.T) {
	clearFamilyEnv(t)
	t.Setenv("TERM_PROGRAM", "cursor")
	if got := detectFamily(); got != FamilyCursor {
		t.Fatalf("got %v, want FamilyCursor", got)
	}
}

func TestDetectFamilyDefaultsToOther(t *testing.T) {
	clearFamilyEnv(t)
	t.Setenv("TERM_PROGRAM", "WezTerm")
	if got := detectFamily(); got != FamilyOther {
		t.Fatalf("got %v, want FamilyOther", got)
	}
}

func TestCursorFamilyUsesCombinedSaveRestore(t *testing.T) {
	if string(SaveCursorSequence(FamilyCursor)) != "\x1b[s\x1b7" {
		t.Fatalf("expected combined save sequence for Cursor family")
	}
	if string(RestoreCursorSequence(FamilyCursor)) != "\x1b[u\x1b8" {
		t.Fatalf("expected combined restore sequence for Cursor family")
	}
}

func TestJetBrainsFamilyUsesDECOnlySaveRestore(t *testing.T) {
	if string(SaveCursorSequence(FamilyJetBrains)) != "\x1b7" {
		t.Fatalf("expected DEC-only save sequence for JetBrains family")
	}
	if string(RestoreCursorSequence(FamilyJetBrains)) != "\x1b8" {
		t.Fatalf("expected DEC-only restore sequence for JetBrains family")
	}
}

func TestCursorHidePolicyIsJetBrainsOnly(t *testing.T) {
	if !ShouldHideCursor(FamilyJetBrains) {
		t.Fatalf("expected JetBrains to hide cursor during redraw")
	}
	if ShouldHideCursor(FamilyCursor) {
		t.Fatalf("expected Cursor family to not hide cursor")
	}
	if ShouldHideCursor(FamilyOther) {
		t.Fatalf("expected Other family to not hide cursor")
	}
}

func clearFamilyEnv(t *testing.T) {
	t.Helper()
	keys := append(append([]string{}, jetbrainsHintKeys...), cursorHintKeys...)
	keys = append(keys, "TERM_PROGRAM", "TERMINAL_EMULATOR")
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
