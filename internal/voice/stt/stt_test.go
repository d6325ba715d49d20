package stt

import "testing"

func TestAppendSegmentInsertsSpacesForSentenceBoundaries(t *testing.T) {
	transcript := ""
	transcript = AppendSegment(transcript, "I guess now it does.")
	transcript = AppendSegment(transcript, "That's kind of weird.")
	transcript = AppendSegment(transcript, "Nope, there we go.")
	want := "I guess now it does. That's kind of weird. Nope, there we go."
	if transcript != want {
		t.Fatalf("got %q, want %q", transcript, want)
	}
}

func TestAppendSegmentAvoidsExtraSpaceBeforePunctuation(t *testing.T) {
	transcript := ""
	transcript = AppendSegment(transcript, "hello")
	transcript = AppendSegment(transcript, "!")
	transcript = AppendSegment(transcript, "?")
	if transcript != "hello!?" {
		t.Fatalf("got %q", transcript)
	}
}

func TestAppendSegmentKeepsContractionsAttached(t *testing.T) {
	transcript := ""
	transcript = AppendSegment(transcript, "I")
	transcript = AppendSegment(transcript, "'m")
	transcript = AppendSegment(transcript, "ready")
	if transcript != "I'm ready" {
		t.Fatalf("got %q", transcript)
	}
}

func TestBoundarySpacingRespectsWhitespaceAndPunctuationRules(t *testing.T) {
	cases := []struct {
		prev, next rune
		want       bool
	}{
		{'a', ' ', false},
		{' ', 'a', false},
		{'a', '!', false},
		{'a', '?', false},
		{'/', 'a', false},
		{'-', 'a', false},
		{'(', 'a', false},
		{'a', 'b', true},
	}
	for _, c := range cases {
		if got := shouldInsertBoundarySpace(c.prev, c.next); got != c.want {
			t.Errorf("shouldInsertBoundarySpace(%q, %q) = %v, want %v", c.prev, c.next, got, c.want)
		}
	}
}

func TestAppendSegmentTrimsAndSkipsEmptySegments(t *testing.T) {
	transcript := "hello"
	transcript = AppendSegment(transcript, "   ")
	transcript = AppendSegment(transcript, "  world  ")
	transcript = AppendSegment(transcript, ".")
	if transcript != "hello world." {
		t.Fatalf("got %q", transcript)
	}
}

func TestJoinSegmentsFiltersBlankAudioMarker(t *testing.T) {
	segs := []Segment{{Text: "hello"}, {Text: "[BLANK_AUDIO]"}, {Text: "world"}}
	got := JoinSegments(segs)
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}
