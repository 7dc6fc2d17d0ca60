// SPDX-License-Identifier: MIT
/*
Package audio captures PCM and turns it into spectrum ticks:
- Lock-free audio capture using PortAudio, or paced playback of a file
- Noise gate with branchless implementation
- Spectrum analysis into a fixed channel-major tick
- WAV recording with atomic state management

Thread Safety:
- The single tick listener is swapped atomically
- Pre-allocates buffers to avoid GC in hot path
- Locks OS thread during audio processing
*/
package audio

import (
	"runtime"
	"time"

	"spectra/internal/config"
	applog "spectra/internal/log"

	"github.com/gordonklaus/portaudio"
)

// Source is anything that produces spectrum ticks.
type Source interface {
	Listen(fn func(tick []float64)) (stop func())
	TickLen() int
	Start() error
	Close() error
	StartRecording(filename string) error
	StopRecording() error
}

var (
	_ Source = (*Engine)(nil)
	_ Source = (*FileSource)(nil)
)

// Engine captures from a PortAudio input device.
type Engine struct {
	*processor

	lowLatency bool

	// Audio input handling.
	inputBuffer  []int32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream
}

// NewEngine resolves the configured input device and prepares analysis.
// PortAudio must be initialized.
func NewEngine(cfg config.AudioConfig) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	p, err := newProcessor(cfg)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		processor:   p,
		lowLatency:  cfg.LowLatency,
		inputBuffer: make([]int32, cfg.FramesPerBuffer*cfg.InputChannels),
		inputDevice: inputDevice,
	}

	if engine.lowLatency {
		engine.inputLatency = engine.inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = engine.inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Audio: Using input device %q (%d ch @ %.0f Hz, latency %s)",
		inputDevice.Name, cfg.InputChannels, cfg.SampleRate, engine.inputLatency)
	return engine, nil
}

// Start opens and starts the input stream.
func (e *Engine) Start() error { return e.StartInputStream() }

func (e *Engine) StartInputStream() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.framesPerBuffer,
		SampleRate:      e.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
	}

	return nil
}

// Close stops any recording and the input stream.
func (e *Engine) Close() error {
	if err := e.StopRecording(); err != nil {
		return err
	}
	return e.StopInputStream()
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (e *Engine) processInputStream(in []int32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	clear(e.inputBuffer[n:])
	e.process(e.inputBuffer)
}
