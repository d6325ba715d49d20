package writer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"voiceterm/internal/diag"
)

func newTestWriter(buf *bytes.Buffer) *Writer {
	return New(buf, diag.New(), 24, 80, 22)
}

func TestWriterForwardsPtyOutputImmediately(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindPtyOutput, PtyOutput: []byte("hello\n")})
	if buf.String() != "hello\n" {
		t.Fatalf("got %q, want verbatim forward", buf.String())
	}
}

func TestWriterCoalescesStatusUntilFlush(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindStatus, StatusText: "Listening"})
	if buf.Len() != 0 {
		t.Fatalf("expected status to be pending, not yet painted, got %q", buf.String())
	}
	if !w.hasPending {
		t.Fatalf("expected hasPending after a Status message")
	}
	w.flushPending()
	if !strings.Contains(buf.String(), "Listening") {
		t.Fatalf("expected flush to paint the pending status, got %q", buf.String())
	}
}

func TestWriterClearStatusResetsDirtyState(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindEnhancedStatus, BannerLines: []string{"a", "b"}})
	w.flushPending()
	if w.bannerHeight != 2 {
		t.Fatalf("got banner height %d, want 2", w.bannerHeight)
	}
	buf.Reset()
	w.handle(Message{Kind: KindClearStatus})
	if buf.Len() == 0 {
		t.Fatalf("expected clear to emit bytes")
	}
	if w.bannerHeight != 0 || w.previousBannerLines != nil {
		t.Fatalf("expected clear to reset banner state")
	}
}

func TestWriterShowOverlayThenClear(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindShowOverlay, OverlayLines: []string{"help line 1", "help line 2"}})
	if !w.overlayActive || w.overlayHeight != 2 {
		t.Fatalf("expected overlay active with height 2, got active=%v height=%d", w.overlayActive, w.overlayHeight)
	}
	buf.Reset()
	w.handle(Message{Kind: KindClearOverlay})
	if w.overlayActive {
		t.Fatalf("expected overlay inactive after clear")
	}
	if buf.Len() == 0 {
		t.Fatalf("expected clear overlay to emit bytes")
	}
}

func TestWriterResizeClearsOldGeometryAndForcesRepaint(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindEnhancedStatus, BannerLines: []string{"a", "b"}})
	w.flushPending()
	oldStart := w.bannerStartRow

	buf.Reset()
	w.handle(Message{Kind: KindResize, Rows: 40, Cols: 100, ChildRows: 38})
	if w.rows != 40 || w.cols != 100 {
		t.Fatalf("expected new dimensions adopted, got rows=%d cols=%d", w.rows, w.cols)
	}
	if w.previousBannerLines != nil {
		t.Fatalf("expected dirty-line state reset after resize so next paint is a full repaint")
	}
	if oldStart == 0 {
		t.Fatalf("sanity: expected a nonzero old banner start row")
	}
}

func TestWriterBellWritesBELBytes(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindBell, BellCount: 3})
	if buf.String() != "\a\a\a" {
		t.Fatalf("got %q, want three BEL bytes", buf.String())
	}
}

func TestWriterEnableDisableMouse(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	w.handle(Message{Kind: KindEnableMouse})
	if !strings.Contains(buf.String(), "?1000h") {
		t.Fatalf("expected mouse-enable sequence, got %q", buf.String())
	}
	buf.Reset()
	w.handle(Message{Kind: KindDisableMouse})
	if !strings.Contains(buf.String(), "?1000l") {
		t.Fatalf("expected mouse-disable sequence, got %q", buf.String())
	}
}

func TestWriterRunFlushesPendingOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	w.Inbox() <- Message{Kind: KindStatus, StatusText: "hi there"}
	w.Inbox() <- Message{Kind: KindShutdown}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after shutdown")
	}
	if !strings.Contains(buf.String(), "hi there") {
		t.Fatalf("expected pending status to be flushed before shutdown, got %q", buf.String())
	}
}

func TestWriterRunRespectsContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWriter(&buf)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context.Canceled, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
