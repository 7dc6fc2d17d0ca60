// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"sync"
	"sync/atomic"

	"spectra/internal/analysis"
	"spectra/internal/config"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// processor is the part shared by every source: noise gate, optional WAV
// recording, spectrum analysis and tick delivery. process runs on the
// audio thread and does not allocate.
type processor struct {
	broadcaster

	sampleRate      float64
	channels        int
	framesPerBuffer int

	spectrum *analysis.Spectrum
	tick     []float64

	// Noise gate for signal conditioning.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Int32 // Absolute amplitude threshold (0-2147483647)

	// Recording state and buffers.
	isRecording atomic.Bool
	recMu       sync.Mutex
	bitDepth    int
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

func newProcessor(cfg config.AudioConfig) (*processor, error) {
	sc, err := cfg.Spectrum()
	if err != nil {
		return nil, err
	}
	spectrum, err := analysis.NewSpectrum(sc)
	if err != nil {
		return nil, err
	}

	p := &processor{
		sampleRate:      cfg.SampleRate,
		channels:        cfg.InputChannels,
		framesPerBuffer: cfg.FramesPerBuffer,
		spectrum:        spectrum,
		tick:            make([]float64, spectrum.TickLen()),
		bitDepth:        defaultBitDepth,
	}
	p.gateEnabled.Store(cfg.GateEnabled)
	p.SetGateThreshold(cfg.GateThreshold)
	return p, nil
}

// TickLen returns the number of values in every emitted tick.
func (p *processor) TickLen() int { return len(p.tick) }

// process records, gates and analyses one block of interleaved PCM, then
// hands the tick to the listener. A closed gate yields a silent tick so the
// pipeline keeps its cadence.
func (p *processor) process(buffer []int32) {
	if p.isRecording.Load() {
		p.record(buffer)
	}

	if p.gateOpen(buffer) {
		p.spectrum.Process(buffer, p.tick)
	} else {
		clear(p.tick)
	}
	p.emit(p.tick)
}

// gateOpen reports whether the block's peak exceeds the gate threshold.
// Branchless abs and max keep the loop free of mispredictions; the abs is
// taken in int64 so math.MinInt32 does not wrap.
func (p *processor) gateOpen(buffer []int32) bool {
	if !p.gateEnabled.Load() {
		return true
	}
	var maxAmplitude int64
	for _, sample := range buffer {
		v := int64(sample)
		mask := v >> 63
		amplitude := (v ^ mask) - mask
		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 63)) ^ diff
	}
	return maxAmplitude > int64(p.gateThreshold.Load())
}

func (p *processor) record(buffer []int32) {
	p.recMu.Lock()
	defer p.recMu.Unlock()
	if p.wavEncoder == nil {
		return
	}

	n := min(len(buffer), cap(p.sampleBuf.Data))
	p.sampleBuf.Data = p.sampleBuf.Data[:n]
	shift := 32 - p.bitDepth
	for i, sample := range buffer[:n] {
		p.sampleBuf.Data[i] = int(sample >> shift)
	}

	if err := p.wavEncoder.Write(p.sampleBuf); err != nil {
		recordWarnings.Warnf("Audio: Error writing to WAV file: %v", err)
	}
}

// fullScale converts a 0-1 ratio to an int32 amplitude.
func fullScale(ratio float64) int32 {
	return int32(ratio * float64(math.MaxInt32))
}
