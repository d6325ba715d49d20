// Package eventloop is the single-threaded coordinator that owns every
// piece of mutable VoiceTerm state: it is the only goroutine that reads
// PTY output, raw stdin, voice-pipeline results, and timer ticks, and
// the only one that ever mutates geometry, overlay, or HUD state. Every
// other package here (ptysession, writer, geometry, hud, voice/*) is a
// boundary or pure-function layer; this is where their results meet.
//
// The teacher (dcosson-h2/internal/overlay) instead let PTY-reader,
// stdin-reader and SIGWINCH handler goroutines all call directly into
// a shared struct behind one mutex. VoiceTerm's concurrency model
// funnels all three (plus the voice pipeline) into channels drained by
// one select loop, so state mutation is sequential and lock-free.
package eventloop

import (
	"context"
	"fmt"
	"time"

	"voiceterm/internal/config"
	"voiceterm/internal/diag"
	"voiceterm/internal/geometry"
	"voiceterm/internal/history"
	"voiceterm/internal/hud"
	"voiceterm/internal/macros"
	"voiceterm/internal/overlay"
	"voiceterm/internal/promptdetect"
	"voiceterm/internal/ptysession"
	"voiceterm/internal/theme"
	"voiceterm/internal/voice/capture"
	"voiceterm/internal/voice/wakeword"
	"voiceterm/internal/writer"
)

const tickInterval = 20 * time.Millisecond

// resizeCheckTicks is how many tickInterval ticks make up the ~250ms
// resize-watcher poll cadence the core spec names. The HUD line itself
// is recomposed on every tick, re-running each module's Render closure;
// hud.Module.TickInterval is not consulted by this loop.
const (
	resizeCheckTicks  = 250 / 20 // ~250ms
	latencyStaleAfter = 8 * time.Second
)

// TermSizeFunc probes the real terminal's current size; the cmd layer
// supplies a concrete implementation (golang.org/x/term.GetSize against
// the controlling tty) so this package stays testable without one.
type TermSizeFunc func() (rows, cols int, err error)

// Loop is the event-loop coordinator. Exported fields are dependencies
// wired by the caller (normally internal/cmd's Run); unexported
// fields are the loop's own sequential state.
type Loop struct {
	Session  *ptysession.Session
	Writer   *writer.Writer
	Resize   *geometry.ResizeWatcher
	TermSize TermSizeFunc
	Buttons  *hud.ButtonRegistry
	HUD      *hud.Registry
	Prompt   promptdetect.Tracker
	History  history.Sink
	Macros   macros.Expander
	Theme    theme.Capabilities
	Config   config.AppConfig
	Log      *diag.Logger
	Shutdown *diag.ShutdownErrors

	Help     overlay.Overlay
	Settings *overlay.Settings

	Stdin <-chan []byte         // raw bytes read from the controlling tty
	Voice chan VoiceMessage     // results from the voice pipeline goroutine
	Wake  <-chan wakeword.Event // recognized wake-word events, nil when wake-word is disabled

	StartCapture func(ctx context.Context) // kicks off one VoicePipeline.RunOnce
	cancelCapture context.CancelFunc

	mode     geometry.OverlayMode
	hudStyle geometry.HUDStyle
	backend  geometry.CLIBackend

	rows, cols int

	pendingEsc []byte
	inEscape   bool

	backlog          [][]byte
	pendingPTYOutput [][]byte

	autoVoice  bool
	muted      bool
	sendMode   macros.SendMode
	wakeSens   float64

	tick                 uint64
	lastLatencyAt        time.Time
	lastLatencyText      string
	lastVoiceStatusAt    time.Time
	lastVoiceStatusText  string
	recording            bool
	recordingStart       time.Time

	done bool
}

// hotkeys maps a raw control byte read from stdin to a HUD action,
// resolved the same way a mouse click on the matching HUD button would
// be. Only Ctrl+E (send staged text) is named directly by the core
// spec; the rest of the binding table is this package's own choice,
// picked from the C0 control range the teacher's input.go already
// treats as reserved (below 0x20) and documented here rather than left
// implicit.
var hotkeys = map[byte]hud.Action{
	0x16: hud.ActionVoiceTrigger,    // Ctrl+V
	0x1c: hud.ActionHelpToggle,      // Ctrl+\
	0x1d: hud.ActionSettingsToggle,  // Ctrl+]
	0x14: hud.ActionHUDStyleCycle,   // Ctrl+T
	0x1e: hud.ActionThemeToggle,     // Ctrl+^
	0x0e: hud.ActionToggleAutoVoice, // Ctrl+N
	0x1f: hud.ActionMuteToggle,      // Ctrl+_
}

const sendStagedByte = 0x05 // Ctrl+E, named explicitly by spec

// NewLoop builds a Loop at the given initial terminal geometry with
// auto-voice and send-mode seeded from cfg.
func NewLoop(cfg config.AppConfig, rows, cols int, backend geometry.CLIBackend) *Loop {
	sendMode := macros.SendModeAuto
	if cfg.VoiceSendMode == "insert" {
		sendMode = macros.SendModeInsert
	}
	return &Loop{
		Config:    cfg,
		rows:      rows,
		cols:      cols,
		backend:   backend,
		hudStyle:  hudStyleFromString(cfg.HUDStyle),
		autoVoice: cfg.AutoVoice,
		sendMode:  sendMode,
		wakeSens:  cfg.WakeWordSensitivity,
		mode:      geometry.OverlayNone,
	}
}

// LoopStatus is a read-only snapshot of the loop's sequential state, for
// HUD modules registered by the cmd layer before the loop's own fields
// exist to close over directly.
type LoopStatus struct {
	AutoVoice   bool
	Muted       bool
	Recording   bool
	SendMode    macros.SendMode
	WakeSens    float64
	HUDStyle    geometry.HUDStyle
	Backend     geometry.CLIBackend
	LatencyText string
	VoiceStatus string
}

// Snapshot reads the loop's current state. Safe to call only from HUD
// Render closures, which run on the same goroutine as Run.
func (l *Loop) Snapshot() LoopStatus {
	return LoopStatus{
		AutoVoice:   l.autoVoice,
		Muted:       l.muted,
		Recording:   l.recording,
		SendMode:    l.sendMode,
		WakeSens:    l.wakeSens,
		HUDStyle:    l.hudStyle,
		Backend:     l.backend,
		LatencyText: l.lastLatencyText,
		VoiceStatus: l.lastVoiceStatusText,
	}
}

func hudStyleFromString(s string) geometry.HUDStyle {
	switch s {
	case "minimal":
		return geometry.HUDStyleMinimal
	case "hidden":
		return geometry.HUDStyleHidden
	default:
		return geometry.HUDStyleFull
	}
}

// Run drives the select loop until ctx is canceled, the PTY child
// exits, or stdin closes. It always returns after flushing any
// shutdown message to the Writer.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	l.reconcileGeometry()

	for !l.done {
		select {
		case <-ctx.Done():
			l.shutdown()
			return ctx.Err()

		case chunk, ok := <-l.Session.OutputStream():
			if !ok {
				l.shutdown()
				return nil
			}
			l.handlePTYOutput(chunk)

		case data, ok := <-l.Stdin:
			if !ok {
				l.shutdown()
				return nil
			}
			l.handleStdin(data)

		case vm, ok := <-l.Voice:
			if ok {
				l.handleVoiceMessage(vm)
			}

		case event, ok := <-l.Wake:
			if ok {
				l.handleWakeEvent(event)
			}

		case <-ticker.C:
			l.tick++
			l.onTick()
		}

		l.flushBacklog()
		l.flushPendingPTYOutput()
	}
	return nil
}

func (l *Loop) shutdown() {
	if l.done {
		return
	}
	l.done = true
	if l.cancelCapture != nil {
		l.cancelCapture()
	}
	l.flushPendingPTYOutput()
	l.History.FlushPendingLines()
	l.sendWriter(writer.Message{Kind: writer.KindShutdown})
	if err := l.Session.Close(); err != nil {
		l.Shutdown.Add(err)
	}
}

// handlePTYOutput forwards child output to the terminal, and lets the
// prompt tracker and history sink observe it. Unlike sendWriter's other
// callers, a PTY-output chunk is never dropped on backpressure: it is
// queued in pendingPTYOutput and retried by flushPendingPTYOutput until
// the Writer drains, since losing backend output (unlike a stale status
// line) would corrupt what the user sees.
func (l *Loop) handlePTYOutput(chunk []byte) {
	l.pendingPTYOutput = append(l.pendingPTYOutput, chunk)
	l.History.PushBackendOutputBytes(chunk)
	if l.Prompt.FeedOutput(chunk) {
		l.reconcileGeometry()
	}
}

// flushPendingPTYOutput retries queued PTY-output chunks against the
// Writer's inbox in order, stopping at the first one that would block
// so later chunks never jump ahead of earlier ones.
func (l *Loop) flushPendingPTYOutput() {
	for len(l.pendingPTYOutput) > 0 {
		chunk := l.pendingPTYOutput[0]
		select {
		case l.Writer.Inbox() <- writer.Message{Kind: writer.KindPtyOutput, PtyOutput: chunk}:
			l.pendingPTYOutput = l.pendingPTYOutput[1:]
		default:
			return
		}
	}
}

// handleStdin parses one read's worth of raw bytes, carrying an
// in-progress escape sequence across calls via l.pendingEsc.
func (l *Loop) handleStdin(data []byte) {
	for _, b := range data {
		if l.inEscape {
			l.pendingEsc = append(l.pendingEsc, b)
			parsed := ParseEscape(l.pendingEsc)
			if parsed.Intent == IntentIncomplete {
				continue
			}
			l.dispatchEscape(parsed)
			l.inEscape = false
			l.pendingEsc = nil
			continue
		}
		if b == 0x1b {
			l.inEscape = true
			l.pendingEsc = l.pendingEsc[:0]
			continue
		}
		l.dispatchByte(b)
	}
}

func (l *Loop) dispatchByte(b byte) {
	if b == '\r' || b == '\n' {
		l.Prompt.OnUserInput()
		l.queuePTYInput([]byte{b})
		l.History.PushUserInputBytes([]byte{b})
		return
	}
	if b == sendStagedByte {
		l.sendStagedText()
		return
	}
	if action, ok := hotkeys[b]; ok {
		l.handleAction(action)
		return
	}
	l.queuePTYInput([]byte{b})
	l.History.PushUserInputBytes([]byte{b})
}

func (l *Loop) dispatchEscape(p ParsedInput) {
	raw := append([]byte{0x1b}, l.pendingEsc...)

	switch p.Intent {
	case IntentArrowUp, IntentArrowDown:
		if l.mode == geometry.OverlaySettings && l.Settings != nil {
			l.moveSettingsSelection(p.Intent == IntentArrowDown)
			l.repaintOverlay()
			return
		}
		l.queuePTYInput(raw)
	case IntentArrowLeft, IntentArrowRight:
		l.queuePTYInput(raw)
	case IntentMouseEvent:
		if p.MousePress {
			l.handleMouseClick(p)
		}
	default:
		l.queuePTYInput(raw)
	}
}

func (l *Loop) handleMouseClick(p ParsedInput) {
	if action, ok := l.Buttons.Resolve(p.MouseX, p.MouseY); ok {
		l.handleAction(action)
	}
}

func (l *Loop) moveSettingsSelection(down bool) {
	n := overlay.SettingsRowCount()
	if n == 0 {
		return
	}
	if down {
		l.Settings.View.Selected = (l.Settings.View.Selected + 1) % n
	} else {
		l.Settings.View.Selected = (l.Settings.View.Selected - 1 + n) % n
	}
}

func (l *Loop) handleAction(action hud.Action) {
	switch action {
	case hud.ActionToggleAutoVoice:
		l.autoVoice = !l.autoVoice
		if !l.autoVoice {
			l.cancelActiveCapture()
		}
	case hud.ActionVoiceTrigger:
		l.triggerVoiceCapture()
	case hud.ActionSettingsToggle:
		l.toggleOverlay(geometry.OverlaySettings)
	case hud.ActionHelpToggle:
		l.toggleOverlay(geometry.OverlayHelp)
	case hud.ActionHUDStyleCycle:
		l.cycleHUDStyle()
	case hud.ActionThemeToggle:
		l.mode = cycleOverlay(l.mode, geometry.OverlayThemePicker)
		l.repaintOverlay()
	case hud.ActionSensitivityUp:
		l.adjustSensitivity(0.05)
	case hud.ActionSensitivityDown:
		l.adjustSensitivity(-0.05)
	case hud.ActionMuteToggle:
		l.muted = !l.muted
		l.cancelActiveCapture()
	}
}

func cycleOverlay(current, target geometry.OverlayMode) geometry.OverlayMode {
	if current == target {
		return geometry.OverlayNone
	}
	return target
}

func (l *Loop) adjustSensitivity(delta float64) {
	l.wakeSens += delta
	if l.wakeSens < 0 {
		l.wakeSens = 0
	}
	if l.wakeSens > 1 {
		l.wakeSens = 1
	}
}

func (l *Loop) cycleHUDStyle() {
	switch l.hudStyle {
	case geometry.HUDStyleFull:
		l.hudStyle = geometry.HUDStyleMinimal
	case geometry.HUDStyleMinimal:
		l.hudStyle = geometry.HUDStyleHidden
	default:
		l.hudStyle = geometry.HUDStyleFull
	}
	l.reconcileGeometry()
}

// toggleOverlay shows mode's overlay if nothing (or a different
// overlay) is active, or clears it if mode is already active.
func (l *Loop) toggleOverlay(mode geometry.OverlayMode) {
	if l.mode == mode {
		l.mode = geometry.OverlayNone
		l.sendWriter(writer.Message{Kind: writer.KindClearOverlay})
		l.reconcileGeometry()
		return
	}
	l.mode = mode
	l.repaintOverlay()
}

func (l *Loop) currentOverlayProvider() overlay.Overlay {
	switch l.mode {
	case geometry.OverlayHelp:
		return l.Help
	case geometry.OverlaySettings:
		return l.Settings
	default:
		return nil
	}
}

func (l *Loop) repaintOverlay() {
	provider := l.currentOverlayProvider()
	if provider == nil {
		l.reconcileGeometry()
		return
	}
	lines := provider.Lines(l.cols)
	l.sendWriter(writer.Message{Kind: writer.KindShowOverlay, OverlayLines: lines, OverlayRows: l.rows})
	l.reconcileGeometry()
}

// reconcileGeometry recomputes reserved rows for the current frame,
// resizes the PTY child to match, and tells the Writer the new
// geometry so its next repaint lands at the right anchor row.
func (l *Loop) reconcileGeometry() {
	overlayHeight := 0
	if provider := l.currentOverlayProvider(); provider != nil {
		overlayHeight = provider.Height(l.cols)
	}
	frame := geometry.Frame{
		Overlay:          l.mode,
		Cols:             l.cols,
		HUDStyle:         l.hudStyle,
		Backend:          l.backend,
		PromptSuppressed: l.Prompt != nil && l.Prompt.Suppressed(),
		OverlayHeight:    overlayHeight,
	}
	reserved := geometry.ReservedRows(frame)
	childRows := geometry.ChildRows(l.rows, reserved)

	if err := l.Session.SetWinsize(childRows, l.cols); err != nil {
		l.Log.Debugf("GEOMETRY", "set winsize failed: %v", err)
	}
	l.sendWriter(writer.Message{Kind: writer.KindResize, Rows: l.rows, Cols: l.cols, ChildRows: childRows})
	l.registerHUDButtons(childRows + 1)
}

// registerHUDButtons lays out a fixed row of evenly-sized clickable
// zones along the HUD's first reserved row. The HUD line's own segment
// widths vary with content (hud.Registry.ComposeLine truncates/drops
// under width pressure), so precise per-segment rects would need the
// composed line's actual layout fed back here; this is the coarser
// fixed-grid approximation the mouse-click dispatch resolves against
// until that feedback path exists.
func (l *Loop) registerHUDButtons(row int) {
	if l.Buttons == nil {
		return
	}
	l.Buttons.Reset()
	if l.hudStyle == geometry.HUDStyleHidden || l.cols < len(hudButtonOrder)*4 {
		return
	}
	slot := l.cols / len(hudButtonOrder)
	for i, action := range hudButtonOrder {
		x0 := i*slot + 1
		x1 := x0 + slot - 1
		l.Buttons.Add(hud.Rect{X0: x0, Y0: row, X1: x1, Y1: row, Action: action})
	}
}

var hudButtonOrder = []hud.Action{
	hud.ActionToggleAutoVoice,
	hud.ActionVoiceTrigger,
	hud.ActionMuteToggle,
	hud.ActionSensitivityDown,
	hud.ActionSensitivityUp,
	hud.ActionHUDStyleCycle,
	hud.ActionThemeToggle,
	hud.ActionSettingsToggle,
	hud.ActionHelpToggle,
}

// queuePTYInput appends data to the non-blocking write backlog instead
// of writing directly, so a child that's applying backpressure never
// blocks the select loop.
func (l *Loop) queuePTYInput(data []byte) {
	cp := append([]byte(nil), data...)
	l.backlog = append(l.backlog, cp)
}

// flushBacklog drains as much of the queued PTY input as TrySend will
// accept without blocking. ErrWouldBlock leaves the remainder queued
// for the next iteration (the spec's "substitute never-channels when
// queues are full" backpressure policy, expressed here as simply not
// looping forever rather than as an actual never-channel, since the
// backlog drains opportunistically on every select wakeup already).
func (l *Loop) flushBacklog() {
	for len(l.backlog) > 0 {
		chunk := l.backlog[0]
		n, err := l.Session.TrySend(chunk)
		if err == ptysession.ErrWouldBlock {
			l.backlog[0] = chunk[n:]
			return
		}
		if err == ptysession.ErrBrokenPipe {
			l.shutdown()
			return
		}
		if err != nil {
			l.Log.Debugf("PTY", "write error: %v", err)
			l.backlog = l.backlog[1:]
			continue
		}
		if n < len(chunk) {
			l.backlog[0] = chunk[n:]
			return
		}
		l.backlog = l.backlog[1:]
	}
}

func (l *Loop) sendStagedText() {
	// Staged text (captured with VoiceSendMode "insert") is whatever the
	// backend's own line buffer currently holds; VoiceTerm only owns the
	// keystroke that submits it, matching a plain Enter at the PTY.
	l.queuePTYInput([]byte{'\r'})
	l.Prompt.OnUserInput()
}

func (l *Loop) triggerVoiceCapture() {
	if l.muted || l.StartCapture == nil || l.cancelCapture != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancelCapture = cancel
	l.recording = true
	l.recordingStart = time.Now()
	l.StartCapture(ctx)
}

func (l *Loop) cancelActiveCapture() {
	if l.cancelCapture != nil {
		l.cancelCapture()
		l.cancelCapture = nil
	}
	l.recording = false
}

// handleVoiceMessage applies the capture outcome. Transcript expands
// the text through Macros and queues it for the PTY (auto mode appends
// a trailing CR; insert mode stages it for a later Ctrl+E), updates the
// latency badge from the capture's metrics, and — only once the PTY
// bytes are already queued — tells the Writer the transcript is ready.
// Empty clears recording state and shows "No speech detected" on the
// HUD; the latency badge is cleared too, unless auto-voice is running,
// in which case the last real latency keeps showing through the false
// start. Error just logs and clears recording state.
func (l *Loop) handleVoiceMessage(vm VoiceMessage) {
	l.cancelCapture = nil
	l.recording = false

	switch vm.Kind {
	case VoiceMessageTranscript:
		expansion := l.Macros.Apply(vm.Text, l.sendMode)
		l.History.PushTranscript(expansion.Text)
		data := []byte(expansion.Text)
		if expansion.Mode == macros.SendModeAuto {
			data = append(data, '\r')
		}
		l.queuePTYInput(data)
		l.lastLatencyText = formatLatency(vm.Metrics)
		l.lastLatencyAt = time.Now()
		l.lastVoiceStatusText = ""
		l.sendWriter(writer.Message{Kind: writer.KindEnhancedStatus, BannerLines: []string{"Transcript ready"}})
	case VoiceMessageEmpty:
		l.lastVoiceStatusText = "No speech detected"
		l.lastVoiceStatusAt = time.Now()
		if !l.autoVoice {
			l.lastLatencyText = ""
		}
	case VoiceMessageError:
		l.Log.Debugf("VOICE", "capture error: %v", vm.Err)
	}

	if l.autoVoice {
		l.maybeRearmAutoVoice()
	}
}

// formatLatency renders a capture's round-trip time for the HUD
// latency badge: speech capture plus the whisper transcription that
// followed it.
func formatLatency(m capture.Metrics) string {
	return fmt.Sprintf("%dms", m.CaptureMs+m.TranscribeMs)
}

// handleWakeEvent reacts to a recognized wake phrase from the always-on
// wake-word listener: a bare wake-up starts a capture exactly like a
// Ctrl+V press would (muted/already-recording guards still apply via
// triggerVoiceCapture), while a send-intent suffix ("hey codex send")
// submits whatever is currently staged instead.
func (l *Loop) handleWakeEvent(event wakeword.Event) {
	switch event {
	case wakeword.EventDetected:
		l.triggerVoiceCapture()
	case wakeword.EventSendStagedInput:
		l.sendStagedText()
	}
}

// maybeRearmAutoVoice starts the next capture once the prompt tracker
// reports enough idle time that the backend is unlikely to be mid-
// output (re-arming too eagerly captures the tool's own chatter).
func (l *Loop) maybeRearmAutoVoice() {
	if l.Prompt == nil || l.Prompt.Suppressed() {
		return
	}
	if l.Prompt.IdleFor() < time.Duration(l.Config.TranscriptIdleMS)*time.Millisecond {
		return
	}
	l.triggerVoiceCapture()
}

// onTick runs every background concern gated by a tick-count cadence:
// resize reconciliation, the HUD repaint, and stale-badge expiry.
func (l *Loop) onTick() {
	if l.Resize != nil && l.tick%resizeCheckTicks == 0 && l.Resize.Changed() {
		l.applyTerminalResize()
	}
	if l.lastLatencyText != "" && time.Since(l.lastLatencyAt) > latencyStaleAfter {
		l.lastLatencyText = ""
	}
	if l.lastVoiceStatusText != "" && time.Since(l.lastVoiceStatusAt) > latencyStaleAfter {
		l.lastVoiceStatusText = ""
	}
	l.repaintHUD()
}

func (l *Loop) applyTerminalResize() {
	if l.TermSize == nil {
		return
	}
	rows, cols, err := l.TermSize()
	if err != nil {
		l.Log.Debugf("GEOMETRY", "term size probe failed: %v", err)
		return
	}
	if rows == l.rows && cols == l.cols {
		return
	}
	l.rows, l.cols = rows, cols
	l.reconcileGeometry()
}

func (l *Loop) repaintHUD() {
	if l.HUD == nil || l.hudStyle == geometry.HUDStyleHidden {
		return
	}
	line := l.HUD.ComposeLine(l.cols)
	l.sendWriter(writer.Message{Kind: writer.KindStatus, StatusText: line})
}

// sendWriter is a best-effort, non-blocking send to the Writer's inbox
// for messages it is safe to lose: a full inbox means the Writer is
// behind on painting, and the loop would rather drop a stale status
// update than stall on it. PtyOutput never goes through here — see
// flushPendingPTYOutput, which retries instead of dropping.
func (l *Loop) sendWriter(m writer.Message) {
	select {
	case l.Writer.Inbox() <- m:
	default:
		l.Log.Debugf("WRITER", "inbox full, dropped message kind=%d", m.Kind)
	}
}
