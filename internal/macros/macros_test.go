package macros

import "testing"

func TestPassthroughReturnsTextUnchanged(t *testing.T) {
	got := Passthrough{}.Apply("deploy the staging branch", SendModeAuto)
	want := Expansion{Text: "deploy the staging branch", Mode: SendModeAuto}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestPassthroughPreservesInsertMode(t *testing.T) {
	got := Passthrough{}.Apply("status report", SendModeInsert)
	if got.Mode != SendModeInsert {
		t.Fatalf("got mode %v, want SendModeInsert", got.Mode)
	}
	if got.MatchedTrigger != "" {
		t.Fatalf("passthrough should never report a matched trigger, got %q", got.MatchedTrigger)
	}
}

func TestPassthroughSatisfiesExpanderInterface(t *testing.T) {
	var _ Expander = Passthrough{}
}
