package wakeword

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"voiceterm/internal/voice/stt"
)

// Settings are the tunables the event loop passes to Sync whenever the
// user's auto-voice/wake-word configuration changes.
type Settings struct {
	Enabled             bool
	Sensitivity         float64
	CooldownMs          int
	VoiceThresholdDB    float64
	PrioritizeSend      bool
	CaptureActive       bool
}

func (s Settings) equalModuloRuntimeFlags(o Settings) bool {
	return s.Enabled == o.Enabled && s.Sensitivity == o.Sensitivity &&
		s.CooldownMs == o.CooldownMs && s.VoiceThresholdDB == o.VoiceThresholdDB
}

// Listener polls STT windows for a recognized wake phrase while paused
// during active capture, and enforces a cooldown between firings so a
// single utterance doesn't double-trigger.
type Listener struct {
	settings       Settings
	pause          atomic.Bool
	prioritizeSend atomic.Bool
	stop           chan struct{}
	wg             sync.WaitGroup
	lastFire       time.Time
	mu             sync.Mutex

	mic *semaphore.Weighted
}

// NewListener builds a Listener that shares micSem with the main capture
// pipeline, so the two can never read the microphone concurrently (spec
// "capture and wake-listener share the mic, never concurrently").
func NewListener(settings Settings, micSem *semaphore.Weighted) *Listener {
	l := &Listener{settings: settings, mic: micSem, stop: make(chan struct{})}
	l.pause.Store(settings.CaptureActive)
	l.prioritizeSend.Store(settings.PrioritizeSend && !settings.CaptureActive)
	return l
}

// Pause suspends listening without tearing the listener down, used while
// the main capture pipeline holds the mic.
func (l *Listener) Pause()  { l.pause.Store(true) }
func (l *Listener) Resume() { l.pause.Store(false) }
func (l *Listener) Paused() bool { return l.pause.Load() }

// PrioritizeSend reports whether the listener should bias toward
// detecting a send-intent suffix, set while a staged insert-mode send
// window is open.
func (l *Listener) PrioritizeSend() bool { return l.prioritizeSend.Load() }

// Start launches the background poll loop, calling onEvent for every
// non-None wake event observed (subject to cooldown).
func (l *Listener) Start(ctx context.Context, windows <-chan string, onEvent func(Event)) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case window, ok := <-windows:
				if !ok {
					return
				}
				if l.Paused() {
					continue
				}
				if !l.acquireMic() {
					continue
				}
				event := DetectWakeEvent(window)
				l.releaseMic()
				if event == EventNone {
					continue
				}
				if !l.coolingDownElapsed() {
					continue
				}
				l.recordFire()
				onEvent(event)
			}
		}
	}()
}

func (l *Listener) acquireMic() bool {
	if l.mic == nil {
		return true
	}
	return l.mic.TryAcquire(1)
}

func (l *Listener) releaseMic() {
	if l.mic == nil {
		return
	}
	l.mic.Release(1)
}

func (l *Listener) coolingDownElapsed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastFire.IsZero() {
		return true
	}
	return time.Since(l.lastFire) >= time.Duration(l.settings.CooldownMs)*time.Millisecond
}

func (l *Listener) recordFire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastFire = time.Now()
}

// Stop halts the poll loop and waits for it to exit.
func (l *Listener) Stop() {
	close(l.stop)
	l.wg.Wait()
}

// Runtime owns listener lifecycle: start/stop/restart on settings change,
// and pause/resume/prioritize-send tracking on every capture-state
// transition, without restarting the listener goroutine unnecessarily.
type Runtime struct {
	mu       sync.Mutex
	listener *Listener
	settings Settings
	micSem   *semaphore.Weighted
	windows  <-chan string
	onEvent  func(Event)
}

// NewRuntime builds a Runtime. windows delivers normalized STT text
// windows for phrase matching; onEvent is called for every recognized
// wake event.
func NewRuntime(micSem *semaphore.Weighted, windows <-chan string, onEvent func(Event)) *Runtime {
	return &Runtime{micSem: micSem, windows: windows, onEvent: onEvent}
}

// Sync reconciles the listener against the latest desired settings: it
// starts a listener when enabled, stops it when disabled, restarts it
// only when the settings that affect detection itself change (not on
// every pause/resume toggle), and otherwise just updates the pause and
// prioritize-send flags on the existing listener in place.
func (r *Runtime) Sync(enabled bool, sensitivity float64, cooldownMs int, voiceThresholdDB float64, prioritizeSend, captureActive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := Settings{
		Enabled:          enabled,
		Sensitivity:      sensitivity,
		CooldownMs:       cooldownMs,
		VoiceThresholdDB: voiceThresholdDB,
		PrioritizeSend:   prioritizeSend,
		CaptureActive:    captureActive,
	}

	if !enabled {
		if r.listener != nil {
			r.listener.Stop()
			r.listener = nil
		}
		r.settings = next
		return
	}

	if r.listener == nil || !r.settings.equalModuloRuntimeFlags(next) {
		if r.listener != nil {
			r.listener.Stop()
		}
		r.listener = NewListener(next, r.micSem)
		r.listener.Start(context.Background(), r.windows, r.onEvent)
	} else {
		if captureActive {
			r.listener.Pause()
		} else {
			r.listener.Resume()
		}
		r.listener.prioritizeSend.Store(prioritizeSend && !captureActive)
	}

	r.settings = next
}

// IsListenerActive reports whether a listener goroutine is currently
// running (regardless of pause state).
func (r *Runtime) IsListenerActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listener != nil
}

// Stop tears down any running listener.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener != nil {
		r.listener.Stop()
		r.listener = nil
	}
}

// transcriptMatchesHotword is a thin helper for callers (e.g. the STT
// pipeline) that only need a yes/no answer without event classification.
func transcriptMatchesHotword(t stt.Transcript) bool {
	return ContainsHotwordPhrase(t.Text)
}
