// Package whisper adapts github.com/ggerganov/whisper.cpp/bindings/go to
// the stt.Engine boundary interface. The model file itself stays an
// external collaborator: this package only owns the loaded context and
// the parameter wiring.
package whisper

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	whisperbind "github.com/ggerganov/whisper.cpp/bindings/go"

	"voiceterm/internal/voice/stt"
)

// Engine wraps a loaded whisper.cpp model context for reuse across
// captures, avoiding the repeated-load overhead a fresh context per
// transcription would incur.
type Engine struct {
	mu          sync.Mutex
	ctx         *whisperbind.Context
	beamSize    int
	temperature float32
}

// Options configures model load and per-call inference parameters.
type Options struct {
	ModelPath   string
	BeamSize    int
	Temperature float32
}

// New loads the Whisper model from disk. Model load emits verbose
// initialization logging from the underlying C library; callers that
// want a quiet startup should redirect stderr around the call to New,
// matching how terminal-wrapping tools keep whisper.cpp's own log noise
// out of the mirrored PTY stream.
func New(opts Options) (*Engine, error) {
	var model *whisperbind.Context
	err := silenceCLogs(func() error {
		var loadErr error
		model, loadErr = whisperbind.New(opts.ModelPath)
		return loadErr
	})
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", opts.ModelPath, err)
	}
	return &Engine{ctx: model, beamSize: opts.BeamSize, temperature: opts.Temperature}, nil
}

// Transcribe runs inference over mono float32 PCM at whisper's expected
// 16kHz sample rate and returns the joined, normalized transcript.
func (e *Engine) Transcribe(samples []float32, lang string) (stt.Transcript, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := e.ctx.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("create whisper state: %w", err)
	}

	if strings.EqualFold(lang, "auto") {
		ctx.SetLanguage("auto")
	} else {
		ctx.SetLanguage(lang)
	}
	ctx.SetTemperature(e.temperature)
	ctx.SetThreads(clampThreads())
	ctx.SetTranslate(false)

	if err := ctx.Process(samples, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper inference: %w", err)
	}

	var segments []stt.Segment
	for {
		seg, err := ctx.NextSegment()
		if err != nil {
			break
		}
		segments = append(segments, stt.Segment{Text: seg.Text})
	}

	text := stt.JoinSegments(segments)
	return stt.Transcript{Text: text}, nil
}

// clampThreads keeps one logical core free and caps fanout to reduce
// contention spikes against the PTY-reading and writer goroutines.
func clampThreads() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	return n
}

// silenceCLogs is a best-effort stderr redirect for the duration of model
// load, mirroring the stderr-dup-and-restore pattern used to keep
// whisper.cpp's own C-level logging out of the terminal.
func silenceCLogs(fn func() error) error {
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return fn()
	}
	defer devnull.Close()

	saved := os.Stderr
	os.Stderr = devnull
	defer func() { os.Stderr = saved }()

	return fn()
}
