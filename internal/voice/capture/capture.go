// Package capture implements the audio-capture policy layer sitting
// between raw VAD labels and the STT handoff: a bounded rolling buffer
// with trailing-silence trim and lookback tail, a capture state machine
// that decides when to stop, and an offline harness that runs the whole
// pipeline over a fixed PCM fixture for deterministic tests.
package capture

import (
	"voiceterm/internal/voice/vad"
)

// StopReason explains why capture ended, in the priority order the event
// loop and metrics care about: MaxDuration and VadSilence are decided
// inside the frame loop, ManualStop is injected by the caller, Timeout
// fires when frames stop arriving, and Error wraps anything else.
type StopReason struct {
	Kind   StopKind
	TailMs uint64 // only meaningful when Kind == StopVadSilence
	Err    error  // only meaningful when Kind == StopError
}

type StopKind int

const (
	StopMaxDuration StopKind = iota
	StopVadSilence
	StopManualStop
	StopTimeout
	StopError
)

// Label returns the compact string used in logs/metrics, matching the
// original implementation's reason labels.
func (r StopReason) Label() string {
	switch r.Kind {
	case StopVadSilence:
		return "vad_silence"
	case StopMaxDuration:
		return "max_duration"
	case StopManualStop:
		return "manual_stop"
	case StopTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Metrics is collected during a capture for observability/debugging.
type Metrics struct {
	CaptureMs       uint64
	TranscribeMs    uint64
	SpeechMs        uint64
	SilenceTailMs   uint64
	FramesProcessed int
	FramesDropped   int
	EarlyStopReason StopReason
}

// Result is the caller-facing capture outcome: mono PCM plus metrics.
type Result struct {
	Audio   []float32
	Metrics Metrics
}

type frameRecord struct {
	samples []float32
	label   vad.FrameLabel
}

// FrameAccumulator is a bounded rolling buffer of labeled frames. Frames
// are kept labeled, rather than flattened into one sample slice, so
// trailing-silence trimming can drop whole silence spans while
// preserving a short lookback tail.
type FrameAccumulator struct {
	frames         []frameRecord
	totalSamples   int
	maxSamples     int
	lookbackSamples int
}

// NewFrameAccumulator sizes the buffer from a vad.Config: BufferMs bounds
// total retained audio, LookbackMs bounds how much trailing silence
// survives a trim.
func NewFrameAccumulator(cfg vad.Config) *FrameAccumulator {
	maxSamples := (int(cfg.BufferMs) * cfg.SampleRate) / 1000
	if maxSamples < 1 {
		maxSamples = 1
	}
	lookback := (int(cfg.LookbackMs) * cfg.SampleRate) / 1000
	return &FrameAccumulator{maxSamples: maxSamples, lookbackSamples: lookback}
}

// PushFrame appends a labeled frame, then evicts the oldest frames (not
// the newest) until the buffer is back under its sample ceiling. This
// enforces a hard memory bound during long captures while preserving
// lookback in the newest frames.
func (a *FrameAccumulator) PushFrame(samples []float32, label vad.FrameLabel) {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	a.totalSamples += len(cp)
	a.frames = append(a.frames, frameRecord{samples: cp, label: label})
	for a.totalSamples > a.maxSamples && len(a.frames) > 0 {
		evicted := a.frames[0]
		a.frames = a.frames[1:]
		a.totalSamples -= len(evicted.samples)
	}
}

// IsEmpty reports whether any samples have been retained.
func (a *FrameAccumulator) IsEmpty() bool {
	return a.totalSamples == 0
}

// IntoAudio consumes the accumulator and returns the retained audio.
// Trailing silence is trimmed only when stop_reason is VadSilence; for
// ManualStop/Timeout/MaxDuration the full buffered audio is kept so users
// don't unexpectedly lose content they were still speaking over.
func (a *FrameAccumulator) IntoAudio(reason StopReason) []float32 {
	if reason.Kind == StopVadSilence {
		a.trimTrailingSilence()
	}
	audio := make([]float32, 0, a.totalSamples)
	for _, rec := range a.frames {
		audio = append(audio, rec.samples...)
	}
	return audio
}

func (a *FrameAccumulator) trimTrailingSilence() {
	trailing := 0
	for i := len(a.frames) - 1; i >= 0; i-- {
		if a.frames[i].label != vad.LabelSilence {
			break
		}
		trailing += len(a.frames[i].samples)
	}
	excess := trailing - a.lookbackSamples
	if excess <= 0 {
		return
	}

	targetTotal := a.totalSamples - excess
	for a.totalSamples > targetTotal {
		if len(a.frames) == 0 {
			break
		}
		last := &a.frames[len(a.frames)-1]
		if last.label != vad.LabelSilence {
			break
		}
		recordLen := len(last.samples)
		if recordLen == 0 {
			a.frames = a.frames[:len(a.frames)-1]
			continue
		}
		remaining := a.totalSamples - targetTotal
		remove := remaining
		if remove > recordLen {
			remove = recordLen
		}
		if remove >= recordLen {
			a.totalSamples -= recordLen
			a.frames = a.frames[:len(a.frames)-1]
		} else {
			keep := recordLen - remove
			last.samples = last.samples[:keep]
			a.totalSamples -= remove
		}
	}
}

// State tracks elapsed/speech/silence windows and decides when capture
// should stop. Keeping these windows separate (rather than a single
// "are we in silence" bool) makes stop decisions robust to transient VAD
// flips.
type State struct {
	cfg             vad.Config
	frameMs         uint64
	speechMs        uint64
	silenceStreakMs uint64
	totalMs         uint64
}

// NewState builds a capture State for the given config.
func NewState(cfg vad.Config) *State {
	return &State{cfg: cfg, frameMs: cfg.FrameMs}
}

// OnFrame processes one labeled frame and returns a non-nil StopReason if
// capture should end. Silence can only stop capture after speech has
// already been observed and the minimum recording duration is met, so
// capture doesn't end immediately in a quiet room.
func (s *State) OnFrame(label vad.FrameLabel) *StopReason {
	switch label {
	case vad.LabelSpeech:
		s.speechMs += s.frameMs
		s.silenceStreakMs = 0
	case vad.LabelSilence:
		s.silenceStreakMs += s.frameMs
	case vad.LabelUncertain:
		s.silenceStreakMs = 0
	}
	s.totalMs += s.frameMs

	if s.totalMs >= s.cfg.MaxRecordingDurationMs {
		return &StopReason{Kind: StopMaxDuration}
	}

	if s.speechMs > 0 &&
		s.totalMs >= s.cfg.MinRecordingDurationMs &&
		s.silenceStreakMs >= s.cfg.SilenceDurationMs {
		return &StopReason{Kind: StopVadSilence, TailMs: s.silenceStreakMs}
	}
	return nil
}

// OnTimeout advances elapsed time without a frame, so a stalled input
// device can't keep capture alive forever.
func (s *State) OnTimeout() *StopReason {
	s.totalMs += s.frameMs
	if s.totalMs >= s.cfg.MaxRecordingDurationMs {
		return &StopReason{Kind: StopTimeout}
	}
	return nil
}

// ManualStop returns the StopReason for a caller-initiated stop. Per the
// ManualStop/Timeout/MaxDuration policy in IntoAudio, a manual stop keeps
// the full buffer rather than trimming it — it is never treated as a
// silence-triggered stop. Whether that audio is transcribed or discarded
// is the caller's choice; eventloop.VoicePipeline discards it on cancel.
func (s *State) ManualStop() StopReason {
	return StopReason{Kind: StopManualStop}
}

func (s *State) TotalMs() uint64       { return s.totalMs }
func (s *State) SpeechMs() uint64      { return s.speechMs }
func (s *State) SilenceTailMs() uint64 { return s.silenceStreakMs }

// OfflineCaptureFromPCM runs the silence-aware capture state machine
// against a fixed in-memory PCM fixture. This lets tests (and a
// benchmarking harness) exercise the full decision pipeline without a
// real microphone.
func OfflineCaptureFromPCM(samples []float32, cfg vad.Config, engine vad.Engine) Result {
	frameSamples := cfg.FrameSamples()
	acc := NewFrameAccumulator(cfg)
	state := NewState(cfg)
	smoother := vad.NewSmoother(cfg.SmoothingFrames)
	metrics := Metrics{EarlyStopReason: StopReason{Kind: StopMaxDuration}}
	stopReason := StopReason{Kind: StopMaxDuration}

	for off := 0; off < len(samples); off += frameSamples {
		if state.TotalMs() >= cfg.MaxRecordingDurationMs {
			break
		}
		end := off + frameSamples
		if end > len(samples) {
			end = len(samples)
		}
		frame := make([]float32, frameSamples)
		copy(frame, samples[off:end])

		decision := engine.ProcessFrame(frame)
		metrics.FramesProcessed++
		label := smoother.Smooth(decision)
		acc.PushFrame(frame, label)

		if reason := state.OnFrame(label); reason != nil {
			stopReason = *reason
			break
		}
	}

	if acc.IsEmpty() {
		return Result{Audio: nil, Metrics: metrics}
	}

	if stopReason.Kind == StopMaxDuration && state.SilenceTailMs() >= cfg.SilenceDurationMs {
		// The loop ran out while already in long silence; classify as a
		// silence stop so metrics reflect user behavior, not loop order.
		stopReason = StopReason{Kind: StopVadSilence, TailMs: state.SilenceTailMs()}
	}

	audio := acc.IntoAudio(stopReason)
	metrics.SpeechMs = state.SpeechMs()
	metrics.SilenceTailMs = state.SilenceTailMs()
	metrics.CaptureMs = state.TotalMs()
	metrics.EarlyStopReason = stopReason

	return Result{Audio: audio, Metrics: metrics}
}
