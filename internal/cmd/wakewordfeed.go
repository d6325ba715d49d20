package cmd

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"voiceterm/internal/voice/mic"
	"voiceterm/internal/voice/stt/whisper"
)

// wakeWordWindowMs is how much audio each wake-word transcription window
// covers: long enough to catch a full "hey codex" utterance, short enough
// that the listener reacts within about a second and a half.
const wakeWordWindowMs = 1500

// startWakeWordFeed continuously samples short windows of microphone audio
// and transcribes each through the same whisper engine the main capture
// pipeline uses, emitting the resulting text on the returned channel for a
// wakeword.Runtime to scan for a wake phrase. It shares dev and micSem with
// the main capture pipeline (acquiring the semaphore per window, never
// across one) so the two never read the microphone at the same instant,
// and shares the already-loaded whisper model rather than loading a second
// one just for wake-word detection.
func startWakeWordFeed(ctx context.Context, dev *mic.Device, engine *whisper.Engine, micSem *semaphore.Weighted, frameMs int) <-chan string {
	out := make(chan string, 4)
	framesPerWindow := framesForWindow(wakeWordWindowMs, frameMs)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !micSem.TryAcquire(1) {
				select {
				case <-time.After(50 * time.Millisecond):
				case <-ctx.Done():
					return
				}
				continue
			}

			samples := make([]float32, 0, framesPerWindow*frameMs)
			readErr := error(nil)
			for i := 0; i < framesPerWindow; i++ {
				frame, err := dev.ReadFrame()
				if err != nil {
					readErr = err
					break
				}
				samples = append(samples, frame...)
			}
			micSem.Release(1)
			if readErr != nil {
				return
			}

			transcript, err := engine.Transcribe(samples, "en")
			if err != nil {
				continue
			}

			select {
			case out <- transcript.Text:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// framesForWindow returns how many frameMs-sized mic frames make up one
// windowMs transcription window, defaulting frameMs to 20ms and flooring
// the result at one frame so a misconfigured (zero or negative) frame
// size never produces a zero-length window.
func framesForWindow(windowMs, frameMs int) int {
	if frameMs <= 0 {
		frameMs = 20
	}
	n := windowMs / frameMs
	if n < 1 {
		n = 1
	}
	return n
}
