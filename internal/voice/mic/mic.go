// Package mic wraps a mono float32 microphone input device via
// PortAudio, giving the capture and wake-word packages a small, testable
// seam instead of depending on the PortAudio API directly.
package mic

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// Device is an open microphone input stream producing mono float32
// frames at a fixed sample rate.
type Device struct {
	stream     *portaudio.Stream
	buf        []float32
	sampleRate int
}

// Open initializes PortAudio (idempotent process-wide) and opens a
// default-input mono stream with the given sample rate and frame size.
func Open(sampleRate, frameSamples int) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buf := make([]float32, frameSamples)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSamples, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open default input stream: %w", err)
	}

	d := &Device{stream: stream, buf: buf, sampleRate: sampleRate}
	if err := d.stream.Start(); err != nil {
		d.Close()
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	return d, nil
}

// ReadFrame blocks until one frame of audio is available and returns it.
// The returned slice is owned by the caller (copied out of the internal
// buffer) so it's safe to retain across calls.
func (d *Device) ReadFrame() ([]float32, error) {
	if err := d.stream.Read(); err != nil {
		return nil, fmt.Errorf("read mic frame: %w", err)
	}
	out := make([]float32, len(d.buf))
	copy(out, d.buf)
	return out, nil
}

// SampleRate returns the device's configured sample rate.
func (d *Device) SampleRate() int { return d.sampleRate }

// Close stops the stream and releases PortAudio resources.
func (d *Device) Close() error {
	var err error
	if d.stream != nil {
		err = d.stream.Close()
	}
	portaudio.Terminate()
	return err
}
