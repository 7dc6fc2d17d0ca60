// SPDX-License-Identifier: MIT
//
// Package preprocess turns one raw tick of hardware magnitudes into a bounded
// sample.Buffer: spectral correction, gain, threshold, response curve and
// adaptive peak normalization, in that order.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	applog "spectra/internal/log"
	"spectra/internal/sample"
	"spectra/internal/scale"
)

const (
	// DefaultChannels is the channel count of every tick the host delivers.
	DefaultChannels = 2
	// DefaultHistoryWindowSize is how many previous tick peaks feed normalization.
	DefaultHistoryWindowSize = 16
	// DefaultPeakWeightBase is the recency base of the normalization weights.
	DefaultPeakWeightBase = 6.0
)

// ErrNoSource is returned by Start when no AudioSource was injected.
var ErrNoSource = errors.New("preprocess: no audio source")

// AudioSource is the host capability that delivers raw ticks. Listen
// registers fn and returns a func that unregisters it. fn is called from the
// host's audio thread with a slice it may reuse after fn returns.
type AudioSource interface {
	Listen(fn func(raw []float64)) (stop func())
}

// Options is the live configuration of a Preprocessor.
type Options struct {
	CorrectSamples    bool
	GainPercent       float64
	ThresholdPermille float64
	Scale             scale.Config
	Normalize         bool
	HistoryWindowSize int
	PeakWeightBase    float64
	Channels          int
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		CorrectSamples:    true,
		Scale:             scale.DefaultConfig(),
		Normalize:         true,
		HistoryWindowSize: DefaultHistoryWindowSize,
		PeakWeightBase:    DefaultPeakWeightBase,
		Channels:          DefaultChannels,
	}
}

func (o Options) validate() (Options, error) {
	if o.Channels == 0 {
		o.Channels = DefaultChannels
	}
	if o.Channels < 0 {
		return o, fmt.Errorf("preprocess: channels must be positive, got %d", o.Channels)
	}
	if o.HistoryWindowSize < 1 {
		return o, fmt.Errorf("preprocess: history window size must be at least 1, got %d", o.HistoryWindowSize)
	}
	if o.PeakWeightBase <= 0 || math.IsNaN(o.PeakWeightBase) || math.IsInf(o.PeakWeightBase, 0) {
		o.PeakWeightBase = DefaultPeakWeightBase
	}
	return o, nil
}

// Result is the outcome of one tick.
type Result struct {
	Data *sample.Buffer
	// Peak is the largest scaled magnitude before normalization. It is what
	// the caller buffers and feeds back as history on the next tick.
	Peak float64
	// WeightedPeak is the divisor used by normalization, 0 when disabled.
	WeightedPeak float64
	// Mean is the average output value. Diagnostic only.
	Mean float64
}

// Preprocessor applies Options to raw ticks. Process has no side effects on
// its inputs; the only state is the compiled scale curve.
type Preprocessor struct {
	opts    Options
	scaleFn scale.Func
	source  AudioSource
	stop    func()
}

// New compiles opts. source may be nil when ticks are fed by hand.
func New(opts Options, source AudioSource) (*Preprocessor, error) {
	p := &Preprocessor{source: source}
	if err := p.SetOptions(opts); err != nil {
		return nil, err
	}
	return p, nil
}

// SetOptions replaces the configuration, recompiling the scale curve.
func (p *Preprocessor) SetOptions(opts Options) error {
	opts, err := opts.validate()
	if err != nil {
		return err
	}
	p.opts = opts
	p.scaleFn = scale.New(opts.Scale)
	return nil
}

// Options returns the active configuration.
func (p *Preprocessor) Options() Options { return p.opts }

// Start registers onTick with the injected AudioSource.
func (p *Preprocessor) Start(onTick func(raw []float64)) error {
	if p.source == nil {
		return ErrNoSource
	}
	if p.stop != nil {
		return nil
	}
	p.stop = p.source.Listen(onTick)
	applog.Infof("Preprocessor: listening (correct=%v gain=%.0f%% threshold=%.0f‰ scale=%v normalize=%v)",
		p.opts.CorrectSamples, p.opts.GainPercent, p.opts.ThresholdPermille, p.opts.Scale.Function, p.opts.Normalize)
	return nil
}

// Stop unregisters from the AudioSource. Safe to call more than once.
func (p *Preprocessor) Stop() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}

// Process transforms one raw tick. peaks holds the Result.Peak of previous
// ticks, oldest first; only the newest HistoryWindowSize are used.
func (p *Preprocessor) Process(raw []float64, peaks []float64) (Result, error) {
	channels := p.opts.Channels
	if len(raw)%channels != 0 {
		return Result{}, fmt.Errorf("%w: tick of %d values for %d channels", sample.ErrShape, len(raw), channels)
	}

	gain := 1 + p.opts.GainPercent/100
	threshold := p.opts.ThresholdPermille / 1000

	out := make([]float64, len(raw))
	var peak float64
	for i, v := range raw {
		if p.opts.CorrectSamples {
			v /= correction(i)
		}
		v *= gain
		if v < threshold {
			v = 0
		}
		v = p.scaleFn(v)
		out[i] = v
		if v > peak {
			peak = v
		}
	}

	res := Result{Peak: peak}
	if p.opts.Normalize {
		res.WeightedPeak = weightedPeak(peak, p.recent(peaks), p.opts.PeakWeightBase)
		if res.WeightedPeak > 0 {
			inv := 1 / res.WeightedPeak
			for i := range out {
				out[i] *= inv
			}
		}
	}

	if len(out) > 0 {
		var sum float64
		for _, v := range out {
			sum += v
		}
		res.Mean = sum / float64(len(out))
	}

	data, err := sample.New(out, channels)
	if err != nil {
		return Result{}, err
	}
	res.Data = data
	return res, nil
}

func (p *Preprocessor) recent(peaks []float64) []float64 {
	if n := p.opts.HistoryWindowSize; len(peaks) > n {
		return peaks[len(peaks)-n:]
	}
	return peaks
}

// weightedPeak blends the current peak (weight 1) with previous peaks
// weighted base^(i/N - 1), so the oldest counts least.
func weightedPeak(current float64, history []float64, base float64) float64 {
	sum, weights := current, 1.0
	n := float64(len(history))
	for i, m := range history {
		w := math.Pow(base, float64(i)/n-1)
		sum += w * m
		weights += w
	}
	return sum / weights
}
