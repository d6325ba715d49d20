package writer

import (
	"sync"

	"github.com/vito/midterm"
)

// ScrollTracker is a shadow virtual terminal fed the same PTY bytes
// the writer forwards to the real stdout. It never produces the frame
// VoiceTerm shows — PTY bytes are written to stdout byte-for-byte
// regardless of what this tracker does — it exists purely to answer
// "did that last chunk of output scroll the visible screen", which
// gates the anti-flicker policy's full-banner-repaint decision.
type ScrollTracker struct {
	mu       sync.Mutex
	vt       *midterm.Terminal
	rows     int
	cols     int
	scrolled bool
}

// NewScrollTracker builds a tracker sized to the child's viewport
// (rows, cols) — the same dimensions the real PTY child is given.
func NewScrollTracker(rows, cols int) *ScrollTracker {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	t := &ScrollTracker{rows: rows, cols: cols}
	t.vt = midterm.NewTerminal(rows, cols)
	t.vt.OnScrollback(func(midterm.Line) {
		t.mu.Lock()
		t.scrolled = true
		t.mu.Unlock()
	})
	return t
}

// Feed writes a chunk of PTY output into the shadow terminal.
func (t *ScrollTracker) Feed(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vt.Write(data)
}

// ConsumeScrolled reports whether any chunk fed since the last call
// caused a line to scroll off the top of the viewport, and clears the
// flag.
func (t *ScrollTracker) ConsumeScrolled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.scrolled
	t.scrolled = false
	return s
}

// CursorColumn reports the shadow terminal's current cursor column,
// 0-indexed.
func (t *ScrollTracker) CursorColumn() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vt.Cursor.X
}

// Resize rebuilds the shadow terminal at the new child viewport size.
// Losing shadow-terminal state across a resize is harmless: the worst
// case is one missed/extra scroll detection immediately after a
// resize, which only affects whether a banner repaint gets forced a
// tick early or late.
func (t *ScrollTracker) Resize(rows, cols int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = rows
	t.cols = cols
	t.vt = midterm.NewTerminal(rows, cols)
	t.vt.OnScrollback(func(midterm.Line) {
		t.mu.Lock()
		t.scrolled = true
		t.mu.Unlock()
	})
}
