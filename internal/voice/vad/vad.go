// Package vad implements frame-level voice activity labeling: a boundary
// Engine interface, a smoothing window over raw per-frame decisions, and
// the shared Config knobs consumed by the capture state machine.
package vad

// Decision is the raw per-frame classification an Engine produces before
// smoothing.
type Decision int

const (
	DecisionSilence Decision = iota
	DecisionSpeech
	DecisionUncertain
)

// FrameLabel is the post-smoothing classification a frame carries once it
// enters the rolling buffer.
type FrameLabel int

const (
	LabelSilence FrameLabel = iota
	LabelSpeech
	LabelUncertain
)

// FromDecision maps a raw Engine decision onto the label space; smoothing
// may subsequently override it.
func FromDecision(d Decision) FrameLabel {
	switch d {
	case DecisionSpeech:
		return LabelSpeech
	case DecisionUncertain:
		return LabelUncertain
	default:
		return LabelSilence
	}
}

// Engine is the boundary interface a concrete VAD implementation (energy
// gate, ML model, offline fixture) satisfies. ProcessFrame receives one
// frame of mono float32 PCM, exactly Config.FrameSamples long.
type Engine interface {
	ProcessFrame(frame []float32) Decision
}

// Config carries every tunable the capture pipeline needs, mirroring the
// cadence knobs exposed on the CLI (spec "STT/VAD" flag group).
type Config struct {
	SampleRate               int
	FrameMs                  uint64
	BufferMs                 uint64
	LookbackMs               uint64
	SmoothingFrames          int
	MaxRecordingDurationMs   uint64
	MinRecordingDurationMs   uint64
	SilenceDurationMs        uint64
	ThresholdDB              float64
}

// FrameSamples returns how many samples one frame holds at this config's
// sample rate and frame duration.
func (c Config) FrameSamples() int {
	n := (c.SampleRate * int(c.FrameMs)) / 1000
	if n < 1 {
		n = 1
	}
	return n
}

// Smoother debounces a raw per-frame Decision stream so a single spurious
// flip doesn't change the label: it requires `window` consecutive frames
// agreeing on a new candidate before it adopts Speech or Silence, and
// otherwise keeps reporting the previously held label.
type Smoother struct {
	window       int
	held         FrameLabel
	pending      FrameLabel
	pendingCount int
	have         bool
}

// NewSmoother builds a Smoother requiring `window` consecutive matching
// frames before changing its held label. window <= 1 disables smoothing.
func NewSmoother(window int) *Smoother {
	if window < 1 {
		window = 1
	}
	return &Smoother{window: window}
}

// Smooth feeds one raw decision and returns the debounced label.
func (s *Smoother) Smooth(d Decision) FrameLabel {
	candidate := FromDecision(d)

	if !s.have {
		s.held = candidate
		s.have = true
		s.pendingCount = 0
		return s.held
	}

	if candidate == LabelUncertain {
		// Uncertain never starts or extends a pending run; report it
		// directly without disturbing the held label.
		s.pendingCount = 0
		return LabelUncertain
	}

	if candidate == s.held {
		s.pendingCount = 0
		return s.held
	}

	if s.pendingCount == 0 || s.pending != candidate {
		s.pending = candidate
		s.pendingCount = 1
	} else {
		s.pendingCount++
	}

	if s.pendingCount >= s.window {
		s.held = s.pending
		s.pendingCount = 0
	}

	return s.held
}
