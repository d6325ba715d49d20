// Package writer owns stdout and the terminal's render discipline: a
// single-threaded queue of messages that get turned into synchronized,
// cursor-save-guarded escape sequences, with dirty-line suppression and
// coalescing so noisy PTY bursts don't flood the terminal with repaints.
package writer

import (
	"context"
	"io"
	"time"

	"voiceterm/internal/diag"
	"voiceterm/internal/termfam"
)

// Kind discriminates the Message variants the Writer accepts.
type Kind int

const (
	KindPtyOutput Kind = iota
	KindStatus
	KindEnhancedStatus
	KindShowOverlay
	KindClearOverlay
	KindClearStatus
	KindBell
	KindResize
	KindSetTheme
	KindEnableMouse
	KindDisableMouse
	KindShutdown
)

// Message is the single envelope type sent over the Writer's inbox
// channel; only the fields relevant to Kind are meaningful.
type Message struct {
	Kind Kind

	PtyOutput []byte // KindPtyOutput

	StatusText string // KindStatus

	BannerLines []string // KindEnhancedStatus

	OverlayLines []string // KindShowOverlay
	OverlayRows  int      // KindShowOverlay: total terminal rows at overlay time

	BellCount int // KindBell

	Rows, Cols, ChildRows int // KindResize

	ThemeName string // KindSetTheme
}

const (
	idleWindow         = 50 * time.Millisecond
	idleWindowPriority = 12 * time.Millisecond
	capWindow          = 150 * time.Millisecond
	capWindowPriority  = 40 * time.Millisecond
	inboxDepth         = 64
)

// Writer is the sole owner of stdout for the process lifetime. All
// state it touches (rows/cols, previous banner lines, overlay state)
// is only ever mutated from the Run goroutine — callers only ever
// send Messages, never touch Writer fields directly.
type Writer struct {
	out    io.Writer
	log    *diag.Logger
	in     chan Message
	family termfam.Family
	scroll *ScrollTracker

	rows, cols int // total terminal dimensions, used for banner/overlay anchoring
	childRows  int // rows reserved for the PTY child's viewport, used for scroll tracking

	previousBannerLines []string
	bannerHeight        int
	bannerStartRow      int

	overlayActive bool
	overlayLines  []string
	overlayHeight int

	pendingStatus  *string
	pendingBanner  []string
	hasPending     bool
	priority       bool
	firstPendingAt time.Time

	themeName string
}

// New builds a Writer that writes to out (normally os.Stdout) and
// tracks a shadow terminal sized to the child's initial viewport for
// scroll detection.
func New(out io.Writer, log *diag.Logger, initialRows, initialCols, initialChildRows int) *Writer {
	return &Writer{
		out:       out,
		log:       log,
		in:        make(chan Message, inboxDepth),
		family:    termfam.Detect(),
		scroll:    NewScrollTracker(initialChildRows, initialCols),
		rows:      initialRows,
		cols:      initialCols,
		childRows: initialChildRows,
	}
}

// Inbox is the channel callers send Messages on. The event loop treats
// sends to it as non-blocking best-effort: a full inbox is backpressure,
// handled by the caller (§4.4), not by the Writer.
func (w *Writer) Inbox() chan<- Message {
	return w.in
}

// Run drains the inbox until a KindShutdown message or ctx cancellation,
// applying the anti-flicker coalescing policy to status/banner repaints.
func (w *Writer) Run(ctx context.Context) error {
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			w.flushPending()
			stopTimer()
			return ctx.Err()

		case m, ok := <-w.in:
			if !ok {
				w.flushPending()
				stopTimer()
				return nil
			}
			shutdown := w.handle(m)
			if w.hasPending {
				wait := w.nextWait()
				if timer == nil {
					timer = time.NewTimer(wait)
					timerC = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(wait)
				}
			}
			if shutdown {
				w.flushPending()
				stopTimer()
				return nil
			}

		case <-timerC:
			w.flushPending()
			stopTimer()
		}
	}
}

// nextWait computes how long to wait before the next coalesced
// repaint, honoring the shortened idle window and cap when a priority
// update is pending.
func (w *Writer) nextWait() time.Duration {
	idle := idleWindow
	capWin := capWindow
	if w.priority {
		idle = idleWindowPriority
		capWin = capWindowPriority
	}
	now := time.Now()
	deadline := now.Add(idle)
	maxDeadline := w.firstPendingAt.Add(capWin)
	if deadline.After(maxDeadline) {
		deadline = maxDeadline
	}
	wait := deadline.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}

// handle applies one message's immediate effects and returns true if
// it was a shutdown request.
func (w *Writer) handle(m Message) bool {
	switch m.Kind {
	case KindPtyOutput:
		w.writePtyOutput(m.PtyOutput)

	case KindStatus:
		text := m.StatusText
		w.pendingStatus = &text
		w.pendingBanner = nil
		w.markPending(false)

	case KindEnhancedStatus:
		w.pendingBanner = m.BannerLines
		w.pendingStatus = nil
		w.markPending(true)

	case KindShowOverlay:
		w.showOverlay(m.OverlayLines, m.OverlayRows)

	case KindClearOverlay:
		w.clearOverlay()

	case KindClearStatus:
		w.clearStatus()

	case KindBell:
		w.writeBell(m.BellCount)

	case KindResize:
		w.resize(m.Rows, m.Cols, m.ChildRows)

	case KindSetTheme:
		w.themeName = m.ThemeName

	case KindEnableMouse:
		w.out.Write([]byte("\x1b[?1000h\x1b[?1006h"))

	case KindDisableMouse:
		w.out.Write([]byte("\x1b[?1000l\x1b[?1006l"))

	case KindShutdown:
		return true
	}
	return false
}

func (w *Writer) markPending(priority bool) {
	if !w.hasPending {
		w.firstPendingAt = time.Now()
	}
	w.hasPending = true
	if priority {
		w.priority = true
	}
}

// writePtyOutput forwards bytes verbatim to stdout and feeds the
// shadow scroll tracker. When the chunk could plausibly scroll the
// terminal (it contains a newline and a banner is currently painted)
// the bottom rows are pre-cleared first, but only on JetBrains, whose
// terminal otherwise leaves a stale duplicate HUD frame behind when
// content scrolls past it.
func (w *Writer) writePtyOutput(data []byte) {
	if w.family == termfam.FamilyJetBrains && w.bannerHeight > 0 && containsNewline(data) {
		if seq := buildClearBottomRowsBytes(w.family, w.rows, w.bannerHeight); seq != nil {
			w.out.Write(seq)
		}
	}
	w.out.Write(data)
	w.scroll.Feed(data)
	if w.scroll.ConsumeScrolled() && (w.bannerHeight > 1 || w.overlayActive) {
		w.previousBannerLines = nil
	}
}

func containsNewline(data []byte) bool {
	for _, b := range data {
		if b == '\n' {
			return true
		}
	}
	return false
}

func (w *Writer) flushPending() {
	if !w.hasPending {
		return
	}
	defer func() {
		w.hasPending = false
		w.priority = false
		w.firstPendingAt = time.Time{}
	}()

	if w.pendingBanner != nil {
		lines := w.pendingBanner
		if err := writeStatusBanner(w.out, w.family, lines, w.rows, w.previousBannerLines); err == nil {
			w.previousBannerLines = append([]string(nil), lines...)
			w.bannerHeight = len(lines)
			if w.bannerHeight > w.rows {
				w.bannerHeight = w.rows
			}
			w.bannerStartRow = w.rows - w.bannerHeight + 1
		}
		w.pendingBanner = nil
		return
	}
	if w.pendingStatus != nil {
		writeStatusLine(w.out, w.family, *w.pendingStatus, w.rows, w.cols)
		w.previousBannerLines = nil
		w.bannerHeight = 1
		w.bannerStartRow = w.rows
		w.pendingStatus = nil
	}
}

func (w *Writer) showOverlay(lines []string, rows int) {
	if w.overlayActive {
		clearOverlayPanel(w.out, w.family, w.rows, w.overlayHeight)
	}
	if rows > 0 {
		w.rows = rows
	}
	w.overlayLines = lines
	w.overlayHeight = len(lines)
	w.overlayActive = true
	writeOverlayPanel(w.out, w.family, lines, w.rows, w.cols)
}

func (w *Writer) clearOverlay() {
	if !w.overlayActive {
		return
	}
	clearOverlayPanel(w.out, w.family, w.rows, w.overlayHeight)
	w.overlayActive = false
	w.overlayLines = nil
	w.overlayHeight = 0
}

func (w *Writer) clearStatus() {
	if w.bannerHeight > 1 {
		clearStatusBanner(w.out, w.family, w.rows, w.bannerHeight)
	} else {
		clearStatusLine(w.out, w.family, w.rows, w.cols)
	}
	w.previousBannerLines = nil
	w.bannerHeight = 0
	w.pendingStatus = nil
	w.pendingBanner = nil
}

func (w *Writer) writeBell(count int) {
	if count <= 0 {
		count = 1
	}
	bells := make([]byte, count)
	for i := range bells {
		bells[i] = '\a'
	}
	w.out.Write(bells)
}

// resize clears whatever banner/overlay was painted at the old
// geometry (at its old anchor row, which may differ from the new
// bottom row), adopts the new dimensions, and forces a full repaint
// on the next flush by discarding dirty-line state.
func (w *Writer) resize(rows, cols, childRows int) {
	if w.rows != 0 && w.cols != 0 {
		if w.overlayActive {
			clearOverlayPanel(w.out, w.family, w.rows, w.overlayHeight)
		}
		if w.bannerHeight > 0 {
			clearStatusBannerAt(w.out, w.family, w.bannerStartRow, w.bannerHeight)
		}
	}
	w.rows = rows
	w.cols = cols
	w.childRows = childRows
	w.previousBannerLines = nil
	w.bannerHeight = 0
	w.scroll.Resize(childRows, cols)
	w.log.Debugf("GEOMETRY", "writer resized to %dx%d (child rows %d)", cols, rows, childRows)
	if w.overlayActive {
		writeOverlayPanel(w.out, w.family, w.overlayLines, w.rows, w.cols)
	}
}
