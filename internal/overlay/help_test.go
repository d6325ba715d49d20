package overlay

import "testing"

func TestHelpLinesNonEmptyAndWrapped(t *testing.T) {
	lines := Help{}.Lines(40)
	if len(lines) < len(helpEntries) {
		t.Fatalf("got %d lines, want at least %d entries", len(lines), len(helpEntries))
	}
	for _, l := range lines {
		if len(l) > 40 {
			t.Fatalf("line %q exceeds requested width 40", l)
		}
	}
}

func TestHelpHeightMatchesLines(t *testing.T) {
	if got, want := (Help{}).Height(60), len((Help{}).Lines(60)); got != want {
		t.Fatalf("got height %d, want %d", got, want)
	}
}

func TestHelpSatisfiesOverlayInterface(t *testing.T) {
	var _ Overlay = Help{}
}
