package history

import "testing"

func TestPushTranscriptIgnoresBlank(t *testing.T) {
	h := NewRingBuffer()
	h.PushTranscript("   ")
	if h.Len() != 0 {
		t.Fatalf("got len %d, want 0 for blank transcript", h.Len())
	}
}

func TestPushTranscriptRecordsSequentialEntries(t *testing.T) {
	h := NewRingBuffer()
	h.PushTranscript("first")
	h.PushTranscript("second")
	if h.Len() != 2 {
		t.Fatalf("got len %d, want 2", h.Len())
	}
	e0, _ := h.Get(0)
	e1, _ := h.Get(1)
	if e0.Sequence >= e1.Sequence {
		t.Fatalf("expected increasing sequence, got %d then %d", e0.Sequence, e1.Sequence)
	}
}

func TestRingBufferEvictsOldestPastMaxEntries(t *testing.T) {
	h := NewRingBuffer()
	for i := 0; i < MaxEntries+5; i++ {
		h.PushTranscript("entry")
	}
	if h.Len() != MaxEntries {
		t.Fatalf("got len %d, want capped at %d", h.Len(), MaxEntries)
	}
}

func TestPushUserInputBytesFlushesOnNewline(t *testing.T) {
	h := NewRingBuffer()
	h.PushUserInputBytes([]byte("hello world\n"))
	if h.Len() != 1 {
		t.Fatalf("got len %d, want 1", h.Len())
	}
	e, _ := h.Get(0)
	if e.Text != "hello world" || e.Source != SourceUserInput {
		t.Fatalf("got %+v, want user input entry 'hello world'", e)
	}
}

func TestPushUserInputBytesDropsEscapeSequences(t *testing.T) {
	h := NewRingBuffer()
	h.PushUserInputBytes([]byte("\x1b[A"))
	h.FlushPendingLines()
	if h.Len() != 0 {
		t.Fatalf("escape-containing input should be dropped, got len %d", h.Len())
	}
}

func TestPushUserInputBytesHandlesBackspace(t *testing.T) {
	h := NewRingBuffer()
	h.PushUserInputBytes([]byte("helly"))
	h.PushUserInputBytes([]byte{0x7f})
	h.PushUserInputBytes([]byte("o\n"))
	e, _ := h.Get(0)
	if e.Text != "hello" {
		t.Fatalf("got %q, want \"hello\" after backspace correction", e.Text)
	}
}

func TestPushBackendOutputBytesFlushesOnNewline(t *testing.T) {
	h := NewRingBuffer()
	h.PushBackendOutputBytes([]byte("response line\n"))
	e, _ := h.Get(0)
	if e.Text != "response line" || e.Source != SourceAssistantOutput {
		t.Fatalf("got %+v, want assistant output entry", e)
	}
	if e.Replayable() {
		t.Fatalf("assistant output should not be replayable")
	}
}

func TestFlushPendingLinesFlushesUnterminatedLines(t *testing.T) {
	h := NewRingBuffer()
	h.PushUserInputBytes([]byte("typed but no newline"))
	if h.Len() != 0 {
		t.Fatalf("unterminated line should not yet be in history")
	}
	h.FlushPendingLines()
	if h.Len() != 1 {
		t.Fatalf("expected FlushPendingLines to record the pending line")
	}
}

func TestSearchIsCaseInsensitiveAndNewestFirst(t *testing.T) {
	h := NewRingBuffer()
	h.PushTranscript("deploy staging")
	h.PushTranscript("run tests")
	h.PushTranscript("DEPLOY production")

	indices := h.Search("deploy")
	if len(indices) != 2 {
		t.Fatalf("got %d matches, want 2", len(indices))
	}
	if indices[0] != 2 {
		t.Fatalf("got first match index %d, want 2 (newest first)", indices[0])
	}
}

func TestSearchEmptyQueryReturnsAllNewestFirst(t *testing.T) {
	h := NewRingBuffer()
	h.PushTranscript("a")
	h.PushTranscript("b")
	indices := h.Search("")
	if len(indices) != 2 || indices[0] != 1 || indices[1] != 0 {
		t.Fatalf("got %v, want [1 0]", indices)
	}
}

func TestRingBufferSatisfiesSinkInterface(t *testing.T) {
	var _ Sink = NewRingBuffer()
}
