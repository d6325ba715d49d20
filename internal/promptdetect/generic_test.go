package promptdetect

import (
	"testing"
	"time"
)

func TestGenericNeverSuppresses(t *testing.T) {
	g := NewGeneric()
	g.FeedOutput([]byte("Do you want to proceed? (y/n)\n"))
	if g.Suppressed() {
		t.Fatalf("generic tracker should never suppress the HUD")
	}
}

func TestGenericIdleForResetsOnUserInput(t *testing.T) {
	g := NewGeneric()
	time.Sleep(time.Millisecond)
	before := g.IdleFor()
	g.OnUserInput()
	after := g.IdleFor()
	if after >= before {
		t.Fatalf("expected idle duration to reset after OnUserInput, before=%v after=%v", before, after)
	}
}

func TestGenericSatisfiesTrackerInterface(t *testing.T) {
	var _ Tracker = NewGeneric()
}
