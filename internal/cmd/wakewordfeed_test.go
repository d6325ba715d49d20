package cmd

import "testing"

func TestFramesForWindowDividesAndFloorsAtOne(t *testing.T) {
	if got := framesForWindow(1500, 20); got != 75 {
		t.Errorf("framesForWindow(1500, 20) = %d, want 75", got)
	}
	if got := framesForWindow(1500, 0); got != 75 {
		t.Errorf("framesForWindow(1500, 0) = %d, want 75 (default 20ms frame)", got)
	}
	if got := framesForWindow(10, 20); got != 1 {
		t.Errorf("framesForWindow(10, 20) = %d, want 1 (floored)", got)
	}
}
