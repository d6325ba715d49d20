package promptdetect

import "testing"

func TestClaudeDetectsSingleCommandApproval(t *testing.T) {
	c := NewClaude()
	detected := c.FeedOutput([]byte("Do you want to run this command? (y/n)\n"))
	if !detected {
		t.Fatalf("expected detection")
	}
	if !c.Suppressed() {
		t.Fatalf("expected suppressed")
	}
	if c.LastPromptType() != PromptSingleCommandApproval {
		t.Fatalf("got %v, want PromptSingleCommandApproval", c.LastPromptType())
	}
}

func TestClaudeDetectsWorktreePermission(t *testing.T) {
	c := NewClaude()
	detected := c.FeedOutput([]byte("Do you want to allow permission to read outside the project?\n"))
	if !detected {
		t.Fatalf("expected detection")
	}
	if c.LastPromptType() != PromptWorktreePermission {
		t.Fatalf("got %v, want PromptWorktreePermission", c.LastPromptType())
	}
}

func TestClaudeDetectsMultiToolBatch(t *testing.T) {
	c := NewClaude()
	detected := c.FeedOutput([]byte("Running tools... +3 more tool uses\n"))
	if !detected {
		t.Fatalf("expected detection")
	}
	if c.LastPromptType() != PromptMultiToolBatch {
		t.Fatalf("got %v, want PromptMultiToolBatch", c.LastPromptType())
	}
}

func TestClaudeDetectsGenericInteractive(t *testing.T) {
	c := NewClaude()
	detected := c.FeedOutput([]byte("Would you like to proceed?\n"))
	if !detected {
		t.Fatalf("expected detection")
	}
	if c.LastPromptType() != PromptGenericInteractive {
		t.Fatalf("got %v, want PromptGenericInteractive", c.LastPromptType())
	}
}

func TestClaudeResolvesOnUserInput(t *testing.T) {
	c := NewClaude()
	c.FeedOutput([]byte("Do you want to proceed? (y/n)\n"))
	if !c.Suppressed() {
		t.Fatalf("expected suppressed before input")
	}
	c.OnUserInput()
	if c.Suppressed() {
		t.Fatalf("expected resolved after OnUserInput")
	}
}

func TestClaudeDoesNotReSuppressSamePrompt(t *testing.T) {
	c := NewClaude()
	first := c.FeedOutput([]byte("Do you want to proceed? (y/n)\n"))
	if !first {
		t.Fatalf("expected first detection")
	}
	second := c.FeedOutput([]byte("still waiting...\n"))
	if second {
		t.Fatalf("expected no re-detection while already suppressed")
	}
	if !c.Suppressed() {
		t.Fatalf("expected still suppressed")
	}
}

func TestClaudeHandlesCRLineSplit(t *testing.T) {
	c := NewClaude()
	detected := c.FeedOutput([]byte("Do you want to proceed?\r(y/n)\n"))
	if !detected {
		t.Fatalf("expected detection across CR-split lines")
	}
}

func TestDetectPromptTypePrioritizesWorktreeOverGeneric(t *testing.T) {
	got := detectPromptType("do you want to allow permission to read outside the project?", "")
	if got != PromptWorktreePermission {
		t.Fatalf("got %v, want PromptWorktreePermission", got)
	}
}

func TestClaudeSatisfiesTrackerInterface(t *testing.T) {
	var _ Tracker = NewClaude()
}

func TestClaudeIdleForTracksUserInput(t *testing.T) {
	c := NewClaude()
	if c.IdleFor() < 0 {
		t.Fatalf("expected non-negative idle duration")
	}
	c.OnUserInput()
	if c.IdleFor() < 0 {
		t.Fatalf("expected non-negative idle duration after input")
	}
}
