// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	applog "spectra/internal/log"
)

// OutputChannels is the channel count of every tick. Mono input is
// duplicated, inputs with more channels contribute their first two.
const OutputChannels = 2

// int32 full scale, for normalizing PCM to [-1, 1).
const fullScale = 1.0 / float64(math.MaxInt32)

// SpectrumConfig describes the input stream and the tick layout.
type SpectrumConfig struct {
	FFTSize       int
	SampleRate    float64
	Window        WindowFunc
	InputChannels int
	Bins          int // per output channel
	MinHz         float64
	MaxHz         float64
}

// Spectrum runs one FFT per output channel over a block of interleaved PCM
// and bins the result into a channel-major tick.
type Spectrum struct {
	cfg    SpectrumConfig
	ffts   [OutputChannels]*FFTProcessor
	binner *Binner

	mono []float64
	mags []float64
}

var _ TickProcessor = (*Spectrum)(nil)

// NewSpectrum validates cfg and pre-allocates every buffer Process needs.
func NewSpectrum(cfg SpectrumConfig) (*Spectrum, error) {
	if cfg.InputChannels < 1 {
		return nil, fmt.Errorf("input channels must be at least 1, got %d", cfg.InputChannels)
	}
	if cfg.Bins == 0 {
		cfg.Bins = DefaultBins
	}
	if cfg.MinHz == 0 {
		cfg.MinHz = DefaultMinHz
	}
	if cfg.MaxHz == 0 {
		cfg.MaxHz = DefaultMaxHz
	}

	s := &Spectrum{cfg: cfg}
	for c := range s.ffts {
		p, err := NewFFTProcessor(cfg.FFTSize, cfg.SampleRate, cfg.Window)
		if err != nil {
			return nil, err
		}
		s.ffts[c] = p
	}
	binner, err := NewBinner(cfg.Bins, cfg.MinHz, cfg.MaxHz, s.ffts[0])
	if err != nil {
		return nil, err
	}
	s.binner = binner
	s.mono = make([]float64, cfg.FFTSize)
	s.mags = make([]float64, cfg.FFTSize/2+1)

	applog.Infof("Analysis: Spectrum ready (FFT %d @ %.0f Hz, %s window, %d in -> %d x %d bins)",
		cfg.FFTSize, cfg.SampleRate, cfg.Window, cfg.InputChannels, OutputChannels, cfg.Bins)
	return s, nil
}

// TickLen returns the number of values Process writes.
func (s *Spectrum) TickLen() int { return OutputChannels * s.cfg.Bins }

// Bins returns the number of bands per channel.
func (s *Spectrum) Bins() int { return s.cfg.Bins }

// Process analyses one block of interleaved PCM and writes TickLen values,
// channel-major, into dst. No allocations.
func (s *Spectrum) Process(interleaved []int32, dst []float64) {
	in := s.cfg.InputChannels
	frames := min(len(interleaved)/in, s.cfg.FFTSize)
	bins := s.cfg.Bins

	for c, fft := range s.ffts {
		src := min(c, in-1)
		for i := range frames {
			s.mono[i] = float64(interleaved[i*in+src]) * fullScale
		}
		clear(s.mono[frames:])

		fft.Process(s.mono)
		_ = fft.MagnitudesInto(s.mags)
		s.binner.Bin(s.mags, dst[c*bins:(c+1)*bins])
	}
}
