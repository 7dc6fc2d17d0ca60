// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	applog "spectra/internal/log"
)

// Default band layout of a tick.
const (
	DefaultBins  = 64
	DefaultMinHz = 20.0
	DefaultMaxHz = 16000.0
)

// band is a contiguous run of FFT bins [lo, hi).
type band struct {
	lowHz, highHz float64
	lo, hi        int
}

// Binner folds an FFT magnitude spectrum into log-spaced frequency bands.
// Each band reports the RMS of the magnitudes it covers. Bands narrower than
// one FFT bin (the low end of small FFTs) take the nearest bin instead of
// going silent.
type Binner struct {
	bands []band
}

// NewBinner lays out count bands between minHz and maxHz over the bins of fp.
// maxHz is clipped to the Nyquist frequency.
func NewBinner(count int, minHz, maxHz float64, fp FrequencyProvider) (*Binner, error) {
	if count < 1 {
		return nil, fmt.Errorf("band count must be at least 1, got %d", count)
	}
	nyquist := fp.SampleRate() / 2
	if maxHz > nyquist {
		applog.Debugf("Analysis: clipping band range %.0f Hz to Nyquist %.0f Hz", maxHz, nyquist)
		maxHz = nyquist
	}
	if minHz <= 0 || minHz >= maxHz {
		return nil, fmt.Errorf("invalid band range %.1f-%.1f Hz", minHz, maxHz)
	}

	numBins := fp.FFTSize()/2 + 1
	resolution := fp.SampleRate() / float64(fp.FFTSize())
	ratio := maxHz / minHz

	bands := make([]band, count)
	for k := range bands {
		low := minHz * math.Pow(ratio, float64(k)/float64(count))
		high := minHz * math.Pow(ratio, float64(k+1)/float64(count))

		lo := int(math.Ceil(low / resolution))
		hi := int(math.Ceil(high / resolution))
		lo = min(max(lo, 0), numBins-1)
		hi = min(max(hi, 0), numBins)
		if hi <= lo {
			center := math.Sqrt(low * high)
			lo = min(int(math.Round(center/resolution)), numBins-1)
			hi = lo + 1
		}
		bands[k] = band{lowHz: low, highHz: high, lo: lo, hi: hi}
	}

	applog.Debugf("Analysis: Initializing Binner with %d bands (%.0f-%.0f Hz, %.2f Hz/bin)", count, minHz, maxHz, resolution)
	return &Binner{bands: bands}, nil
}

// Len returns the number of bands.
func (b *Binner) Len() int { return len(b.bands) }

// Edges returns the lower and upper frequency of band k.
func (b *Binner) Edges(k int) (low, high float64) {
	return b.bands[k].lowHz, b.bands[k].highHz
}

// Bin writes one value per band into dst, which must hold Len() values.
func (b *Binner) Bin(magnitudes, dst []float64) {
	for k, bd := range b.bands {
		hi := min(bd.hi, len(magnitudes))
		if bd.lo >= hi {
			dst[k] = 0
			continue
		}
		var energy float64
		for _, m := range magnitudes[bd.lo:hi] {
			energy += m * m
		}
		dst[k] = math.Sqrt(energy / float64(hi-bd.lo))
	}
}
