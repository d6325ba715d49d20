package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/semaphore"
	"golang.org/x/term"

	"voiceterm/internal/config"
	"voiceterm/internal/diag"
	"voiceterm/internal/eventloop"
	"voiceterm/internal/geometry"
	"voiceterm/internal/history"
	"voiceterm/internal/hud"
	"voiceterm/internal/macros"
	"voiceterm/internal/overlay"
	"voiceterm/internal/promptdetect"
	"voiceterm/internal/ptysession"
	"voiceterm/internal/termfam"
	"voiceterm/internal/theme"
	"voiceterm/internal/voice/mic"
	"voiceterm/internal/voice/stt/whisper"
	"voiceterm/internal/voice/vad"
	"voiceterm/internal/voice/wakeword"
	"voiceterm/internal/writer"
)

// Run wraps command/args in a PTY, wires every boundary package into an
// eventloop.Loop, and drives it until the backend exits or ctx is
// canceled. It owns the controlling terminal's raw-mode lifecycle the
// way the teacher's overlay.go Run does, generalized from one fixed
// struct to the independent packages this build split that struct into.
func Run(ctx context.Context, cfg config.AppConfig, command string, args []string) (err error) {
	log := diag.New()
	shutdown := &diag.ShutdownErrors{}

	fd := int(os.Stdin.Fd())
	cols, rows, sizeErr := term.GetSize(fd)
	if sizeErr != nil {
		cols, rows = 80, 24
	}

	oldState, rawErr := term.MakeRaw(fd)
	if rawErr != nil {
		return fmt.Errorf("set raw mode: %w", rawErr)
	}
	defer func() {
		if restoreErr := term.Restore(fd, oldState); restoreErr != nil {
			shutdown.Add(restoreErr)
		}
		os.Stdout.Write([]byte("\x1b[?25h\x1b[0m\r\n"))
		if shutdownErr := shutdown.Err(); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	termName := os.Getenv("TERM")
	if termName == "" {
		termName = "xterm-256color"
	}

	guard := ptysession.NewGuard(log)
	sess, openErr := ptysession.Open(command, args, termName, rows, cols, guard, log)
	if openErr != nil {
		return openErr
	}

	w := writer.New(os.Stdout, log, rows, cols, rows)
	writerCtx, stopWriter := context.WithCancel(ctx)
	defer stopWriter()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if writerErr := w.Run(writerCtx); writerErr != nil {
			log.Debugf("WRITER", "writer run exited: %v", writerErr)
		}
	}()

	resize := geometry.NewResizeWatcher()
	defer resize.Stop()

	hints := termfam.DetectColorHints()
	caps := theme.Negotiate(hints)
	if cfg.NoColor {
		caps = theme.Capabilities{}
	}

	backend := geometry.BackendGeneric
	if strings.Contains(strings.ToLower(command), "claude") {
		backend = geometry.BackendClaude
	}

	var tracker promptdetect.Tracker
	if backend == geometry.BackendClaude {
		tracker = promptdetect.NewClaude()
	} else {
		tracker = promptdetect.NewGeneric()
	}

	loop := eventloop.NewLoop(cfg, rows, cols, backend)
	loop.Session = sess
	loop.Writer = w
	loop.Resize = resize
	loop.TermSize = func() (int, int, error) {
		c, r, err := term.GetSize(fd)
		return r, c, err
	}
	loop.Buttons = hud.NewButtonRegistry()
	loop.HUD = hud.NewRegistry()
	loop.Prompt = tracker
	loop.History = history.NewRingBuffer()
	loop.Macros = macros.Passthrough{}
	loop.Theme = caps
	loop.Log = log
	loop.Shutdown = shutdown
	loop.Help = overlay.Help{}
	loop.Settings = &overlay.Settings{}

	registerHUDModules(loop, cfg)

	stdin := make(chan []byte, 8)
	go readStdin(ctx, stdin)
	loop.Stdin = stdin

	voiceOut := make(chan eventloop.VoiceMessage, 1)
	loop.Voice = voiceOut

	// Forward SIGINT/SIGTERM as a loop shutdown rather than letting the
	// default Go runtime behavior tear down mid-write to a raw terminal.
	sigCtx, stopSig := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSig()

	micSem := semaphore.NewWeighted(1)
	pipeline, micDev, sttEngine, pipelineErr := newVoicePipeline(cfg, voiceOut)
	if pipelineErr != nil {
		log.Infof("voice pipeline unavailable: %v", pipelineErr)
	} else {
		loop.StartCapture = func(captureCtx context.Context) {
			if !micSem.TryAcquire(1) {
				voiceOut <- eventloop.VoiceMessage{Kind: eventloop.VoiceMessageError, Err: fmt.Errorf("microphone busy")}
				return
			}
			go func() {
				defer micSem.Release(1)
				pipeline.RunOnce(captureCtx, "auto")
			}()
		}

		if cfg.WakeWord {
			wakeChan := make(chan wakeword.Event, 4)
			loop.Wake = wakeChan

			windows := startWakeWordFeed(sigCtx, micDev, sttEngine, micSem, orDefault(cfg.VADFrameMS, 20))
			wwRuntime := wakeword.NewRuntime(micSem, windows, func(e wakeword.Event) {
				select {
				case wakeChan <- e:
				default:
				}
			})
			wwRuntime.Sync(true, cfg.WakeWordSensitivity, orDefault(cfg.WakeWordCooldownMS, 1500),
				orDefaultF(cfg.VADThresholdDB, -45), false, false)
			defer wwRuntime.Stop()
		}
	}

	runErr := loop.Run(sigCtx)

	stopWriter()
	wg.Wait()

	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

// readStdin copies raw terminal input into the loop's Stdin channel
// until ctx is canceled or the read fails, the cmd-layer analogue of the
// teacher's raw stdin-copy goroutine in overlay.go.
func readStdin(ctx context.Context, out chan<- []byte) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// registerHUDModules wires the HUD status-line segments the teacher's
// fixed status-bar fields become once generalized into independent
// Registry modules: voice mode, recording indicator, mute, sensitivity,
// the wrapped backend's name, and the transient voice-status/latency
// badges the event loop populates from each capture outcome.
func registerHUDModules(loop *eventloop.Loop, cfg config.AppConfig) {
	loop.HUD.Register(hud.Module{
		ID: "backend", Priority: 1,
		Render: func() string { return cfg.Backend },
	})
	loop.HUD.Register(hud.Module{
		ID: "mode", Priority: 10,
		Render: func() string {
			s := loop.Snapshot()
			if s.AutoVoice {
				return "Auto"
			}
			return "Manual"
		},
	})
	loop.HUD.Register(hud.Module{
		ID: "recording", Priority: 9,
		Render: func() string {
			s := loop.Snapshot()
			if s.Recording {
				return "● REC"
			}
			return ""
		},
	})
	loop.HUD.Register(hud.Module{
		ID: "muted", Priority: 8,
		Render: func() string {
			s := loop.Snapshot()
			if s.Muted {
				return "muted"
			}
			return ""
		},
	})
	loop.HUD.Register(hud.Module{
		ID: "sensitivity", Priority: 2,
		Render: func() string {
			s := loop.Snapshot()
			return fmt.Sprintf("sens %.0f%%", s.WakeSens*100)
		},
	})
	loop.HUD.Register(hud.Module{
		ID: "voiceStatus", Priority: 6,
		Render: func() string { return loop.Snapshot().VoiceStatus },
	})
	loop.HUD.Register(hud.Module{
		ID: "latency", Priority: 3,
		Render: func() string { return loop.Snapshot().LatencyText },
	})
}

// newVoicePipeline wires mic, an energy-gated VAD, and a whisper.cpp STT
// engine into a VoicePipeline. It fails softly (non-fatal) when no
// whisper model is configured, since a wrapped terminal with voice
// disabled is still a useful VoiceTerm session. It also returns the
// underlying mic.Device and whisper.Engine so the wake-word feed can
// share them with the main capture pipeline instead of opening a second
// microphone stream and loading a second model.
func newVoicePipeline(cfg config.AppConfig, out chan<- eventloop.VoiceMessage) (*eventloop.VoicePipeline, *mic.Device, *whisper.Engine, error) {
	modelPath := os.Getenv("VOICETERM_WHISPER_MODEL")
	if modelPath == "" {
		modelPath = config.ConfigDir() + "/models/ggml-base.en.bin"
	}

	vadCfg := vad.Config{
		SampleRate:             16000,
		FrameMs:                uint64(orDefault(cfg.VADFrameMS, 20)),
		BufferMs:               uint64(orDefault(cfg.BufferMS, 30000)),
		LookbackMs:             uint64(orDefault(cfg.LookbackMS, 300)),
		SmoothingFrames:        3,
		MaxRecordingDurationMs: uint64(orDefault(cfg.MaxCaptureMS, 60000)),
		MinRecordingDurationMs: uint64(orDefault(cfg.MinSpeechMSBeforeSTT, 150)),
		SilenceDurationMs:      uint64(orDefault(cfg.SilenceTailMS, 600)),
		ThresholdDB:            orDefaultF(cfg.VADThresholdDB, -45),
	}

	dev, micErr := mic.Open(vadCfg.SampleRate, vadCfg.FrameSamples())
	if micErr != nil {
		return nil, nil, nil, fmt.Errorf("open microphone: %w", micErr)
	}

	engine, sttErr := whisper.New(whisper.Options{ModelPath: modelPath, BeamSize: 1, Temperature: 0})
	if sttErr != nil {
		dev.Close()
		return nil, nil, nil, fmt.Errorf("load whisper model: %w", sttErr)
	}

	pipeline := &eventloop.VoicePipeline{
		Source: &micFrameSource{dev: dev},
		VAD:    vad.NewEnergyEngine(vadCfg),
		STT:    engine,
		Config: vadCfg,
		Out:    out,
	}
	return pipeline, dev, engine, nil
}

// micFrameSource adapts mic.Device's allocating ReadFrame() ([]float32,
// error) to the eventloop.FrameSource shape (ReadFrame(frame []float32)
// error), so the pipeline can write into its own reused frame buffer
// instead of allocating one per frame.
type micFrameSource struct {
	dev *mic.Device
}

func (m *micFrameSource) ReadFrame(frame []float32) error {
	f, err := m.dev.ReadFrame()
	if err != nil {
		return err
	}
	copy(frame, f)
	return nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultF(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
