package writer

import (
	"fmt"
	"io"

	"voiceterm/internal/termfam"
)

const (
	wrapDisable = "\x1b[?7l"
	wrapEnable  = "\x1b[?7h"
	cursorHide  = "\x1b[?25l"
	cursorShow  = "\x1b[?25h"
	// Synchronized-output mode 2026: the terminal buffers everything
	// written between begin/end and presents it as one atomic frame.
	// Terminals without support silently ignore the sequence.
	syncBegin = "\x1b[?2026h"
	syncEnd   = "\x1b[?2026l"
	clearEOL  = "\x1b[K"
	clearLine = "\x1b[2K"
)

func cursorAt(row int) string {
	return fmt.Sprintf("\x1b[%d;1H", row)
}

func pushCursorPrefix(buf *[]byte, family termfam.Family) {
	*buf = append(*buf, syncBegin...)
	*buf = append(*buf, termfam.SaveCursorSequence(family)...)
	if termfam.ShouldDisableAutowrap(family) {
		*buf = append(*buf, wrapDisable...)
	}
	if termfam.ShouldHideCursor(family) {
		*buf = append(*buf, cursorHide...)
	}
}

func pushCursorSuffix(buf *[]byte, family termfam.Family) {
	if termfam.ShouldDisableAutowrap(family) {
		*buf = append(*buf, wrapEnable...)
	}
	*buf = append(*buf, termfam.RestoreCursorSequence(family)...)
	if termfam.ShouldHideCursor(family) {
		*buf = append(*buf, cursorShow...)
	}
	*buf = append(*buf, syncEnd...)
}

// writeStatusLine paints a single status line at the bottom row,
// truncated (display-width safe) to fit cols.
func writeStatusLine(w io.Writer, family termfam.Family, text string, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	formatted := text
	if DisplayWidth(text) > cols {
		formatted = Truncate(text, cols)
	}
	var seq []byte
	pushCursorPrefix(&seq, family)
	seq = append(seq, cursorAt(rows)...)
	seq = append(seq, formatted...)
	seq = append(seq, clearEOL...)
	pushCursorSuffix(&seq, family)
	_, err := w.Write(seq)
	return err
}

// writeStatusBanner paints a multi-line HUD banner anchored at the
// bottom rows of the terminal. Lines unchanged from previousLines are
// skipped entirely (dirty-line suppression); if nothing changed, no
// bytes are written at all — not even the cursor save/restore frame.
func writeStatusBanner(w io.Writer, family termfam.Family, lines []string, rows int, previousLines []string) error {
	if rows <= 0 || len(lines) == 0 {
		return nil
	}
	height := len(lines)
	if height > rows {
		height = rows
	}
	startRow := rows - height + 1

	var seq []byte
	anyChanged := false
	for idx := 0; idx < height; idx++ {
		line := lines[idx]
		if idx < len(previousLines) && previousLines[idx] == line {
			continue
		}
		if !anyChanged {
			pushCursorPrefix(&seq, family)
			anyChanged = true
		}
		seq = append(seq, cursorAt(startRow+idx)...)
		seq = append(seq, line...)
		seq = append(seq, clearEOL...)
	}
	if !anyChanged {
		return nil
	}
	pushCursorSuffix(&seq, family)
	_, err := w.Write(seq)
	return err
}

// buildClearBottomRowsBytes returns the escape bytes that clear the
// bottom height rows. Used to pre-clear the HUD before PTY output is
// written so a scroll pushes blanks upward instead of a stale frame.
func buildClearBottomRowsBytes(family termfam.Family, rows, height int) []byte {
	if rows <= 0 || height <= 0 {
		return nil
	}
	clearHeight := height
	if clearHeight > rows {
		clearHeight = rows
	}
	startRow := rows - clearHeight + 1

	var seq []byte
	pushCursorPrefix(&seq, family)
	for idx := 0; idx < clearHeight; idx++ {
		seq = append(seq, cursorAt(startRow+idx)...)
		seq = append(seq, clearLine...)
	}
	pushCursorSuffix(&seq, family)
	return seq
}

// clearStatusBanner clears the bottom height rows of the terminal.
func clearStatusBanner(w io.Writer, family termfam.Family, rows, height int) error {
	seq := buildClearBottomRowsBytes(family, rows, height)
	if seq == nil {
		return nil
	}
	_, err := w.Write(seq)
	return err
}

// clearStatusBannerAt clears a banner frame anchored at an explicit
// start row, used when the writer detects the previous frame's anchor
// drifted (e.g. stale geometry) and needs to scrub it from where it
// actually is rather than from the current bottom rows.
func clearStatusBannerAt(w io.Writer, family termfam.Family, startRow, height int) error {
	if startRow <= 0 || height <= 0 {
		return nil
	}
	var seq []byte
	pushCursorPrefix(&seq, family)
	for idx := 0; idx < height; idx++ {
		seq = append(seq, cursorAt(startRow+idx)...)
		seq = append(seq, clearLine...)
	}
	pushCursorSuffix(&seq, family)
	_, err := w.Write(seq)
	return err
}

func clearStatusLine(w io.Writer, family termfam.Family, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	var seq []byte
	pushCursorPrefix(&seq, family)
	seq = append(seq, cursorAt(rows)...)
	seq = append(seq, clearLine...)
	pushCursorSuffix(&seq, family)
	_, err := w.Write(seq)
	return err
}

// writeOverlayPanel paints an already-formatted multi-line panel
// anchored at the bottom rows, truncating each line to cols.
func writeOverlayPanel(w io.Writer, family termfam.Family, lines []string, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	height := len(lines)
	if height > rows {
		height = rows
	}
	startRow := rows - height + 1

	var seq []byte
	pushCursorPrefix(&seq, family)
	for idx := 0; idx < height; idx++ {
		line := lines[idx]
		if DisplayWidth(line) > cols {
			line = Truncate(line, cols)
		}
		seq = append(seq, cursorAt(startRow+idx)...)
		seq = append(seq, line...)
		seq = append(seq, clearEOL...)
	}
	pushCursorSuffix(&seq, family)
	_, err := w.Write(seq)
	return err
}

func clearOverlayPanel(w io.Writer, family termfam.Family, rows, height int) error {
	if rows <= 0 || height <= 0 {
		return nil
	}
	if height > rows {
		height = rows
	}
	startRow := rows - height + 1
	var seq []byte
	pushCursorPrefix(&seq, family)
	for idx := 0; idx < height; idx++ {
		seq = append(seq, cursorAt(startRow+idx)...)
		seq = append(seq, clearLine...)
	}
	pushCursorSuffix(&seq, family)
	_, err := w.Write(seq)
	return err
}
