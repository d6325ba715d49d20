package eventloop

import (
	"context"
	"time"

	"voiceterm/internal/macros"
	"voiceterm/internal/voice/capture"
	"voiceterm/internal/voice/stt"
	"voiceterm/internal/voice/vad"
)

// VoiceMessageKind distinguishes the three outcomes a capture can
// report back to the event loop, per the voice message handling the
// core spec names (Transcript/Empty/Error).
type VoiceMessageKind int

const (
	VoiceMessageTranscript VoiceMessageKind = iota
	VoiceMessageEmpty
	VoiceMessageError
)

// VoiceMessage is what the voice pipeline goroutine sends on the
// channel the event loop selects over. It is the one point of contact
// between the pipeline (mic -> VAD -> capture -> STT) and the single-
// threaded dispatch loop; everything upstream of this message runs
// concurrently, everything downstream runs inside the loop's select.
type VoiceMessage struct {
	Kind     VoiceMessageKind
	Text     string
	Mode     macros.SendMode
	Metrics  capture.Metrics
	Err      error
}

// FrameSource is the boundary the voice pipeline pulls mono float32 PCM
// frames from; voice/mic.Device satisfies it. Kept as an interface here
// (rather than depending on voice/mic directly) so pipeline tests can
// supply a fixture without opening a real audio device.
type FrameSource interface {
	ReadFrame(frame []float32) error
}

// VoicePipeline wires voice/vad, voice/capture and voice/stt into the
// single goroutine that owns a capture from first speech frame through
// transcription, sending its outcome as a VoiceMessage. Nothing in
// internal/voice orchestrates this itself (each package is a pure
// boundary/policy layer per its own doc comment); this is that missing
// wiring point, kept in internal/eventloop since the event loop is this
// pipeline's only consumer and the one thing it needs to stay in sync
// with (auto-voice re-arm, staged-text send mode).
type VoicePipeline struct {
	Source FrameSource
	VAD    vad.Engine
	STT    stt.Engine
	Config vad.Config

	Out chan<- VoiceMessage
}

// RunOnce blocks capturing and transcribing a single utterance: it reads
// frames from Source, classifies each with VAD (smoothed over
// Config.SmoothingFrames), accumulates speech via capture.FrameAccumulator
// and capture.State until a StopReason fires, then hands the resulting
// audio to STT. The result (or error) is sent on Out. ctx cancellation
// (a user cancel) stops mid-capture, discards the buffered audio without
// transcribing it, and reports VoiceMessageEmpty.
func (p *VoicePipeline) RunOnce(ctx context.Context, lang string) {
	acc := capture.NewFrameAccumulator(p.Config)
	state := capture.NewState(p.Config)
	smoother := vad.NewSmoother(p.Config.SmoothingFrames)

	frameSamples := p.Config.FrameSamples()
	frame := make([]float32, frameSamples)

	var stop *capture.StopReason
	for stop == nil {
		// ReadFrame has no ctx parameter of its own (voice/mic wraps a
		// blocking PortAudio read), so each frame's read races against
		// ctx on its own goroutine rather than only being checked
		// between reads — otherwise a manual stop mid-read would never
		// observe cancellation until the next frame happened to arrive.
		frameDone := make(chan error, 1)
		go func() { frameDone <- p.Source.ReadFrame(frame) }()

		select {
		case <-ctx.Done():
			p.send(VoiceMessage{Kind: VoiceMessageEmpty})
			return
		case err := <-frameDone:
			if err != nil {
				p.send(VoiceMessage{Kind: VoiceMessageError, Err: err})
				return
			}
		}

		decision := p.VAD.ProcessFrame(frame)
		label := smoother.Smooth(decision)
		acc.PushFrame(frame, label)
		stop = state.OnFrame(label)
	}

	if acc.IsEmpty() {
		p.send(VoiceMessage{Kind: VoiceMessageEmpty})
		return
	}

	audio := acc.IntoAudio(*stop)
	start := nowFunc()
	transcript, err := p.STT.Transcribe(audio, lang)
	transcribeMs := uint64(nowFunc().Sub(start).Milliseconds())

	metrics := capture.Metrics{
		CaptureMs:       uint64(state.TotalMs()),
		TranscribeMs:    transcribeMs,
		SpeechMs:        uint64(state.SpeechMs()),
		SilenceTailMs:   uint64(state.SilenceTailMs()),
		EarlyStopReason: *stop,
	}

	if err != nil {
		p.send(VoiceMessage{Kind: VoiceMessageError, Err: err, Metrics: metrics})
		return
	}
	text := stt.FilterBlankAudioMarker(transcript.Text)
	if text == "" {
		p.send(VoiceMessage{Kind: VoiceMessageEmpty, Metrics: metrics})
		return
	}
	p.send(VoiceMessage{Kind: VoiceMessageTranscript, Text: text, Metrics: metrics})
}

func (p *VoicePipeline) send(m VoiceMessage) {
	if p.Out == nil {
		return
	}
	p.Out <- m
}

// nowFunc is overridden in tests; production code always uses time.Now.
var nowFunc = time.Now
