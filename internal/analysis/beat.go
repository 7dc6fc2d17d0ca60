// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
)

// BeatDetector flags kick drum onsets from jumps in low-band energy.
type BeatDetector struct {
	threshold      float64 // Minimum energy for a beat.
	minEnergyRatio float64 // Minimum rise over the previous frame.
	lowBands       int     // Number of lowest bands per channel that count.
	lastEnergy     float64
}

// NewBeatDetector returns a detector looking at the lowBands lowest bands of
// each channel. Non-positive lowBands falls back to 4.
func NewBeatDetector(threshold, minEnergyRatio float64, lowBands int) *BeatDetector {
	if lowBands <= 0 {
		lowBands = 4
	}
	return &BeatDetector{
		threshold:      threshold,
		minEnergyRatio: minEnergyRatio,
		lowBands:       lowBands,
	}
}

// Process takes one channel-major frame of channels x bins values and
// reports whether it starts a beat, along with the low-band energy.
func (d *BeatDetector) Process(values []float64, channels int) (beat bool, energy float64) {
	energy = lowBandRMS(values, channels, d.lowBands)
	beat = energy > d.threshold && (d.lastEnergy == 0 || energy/d.lastEnergy > d.minEnergyRatio)
	d.lastEnergy = energy
	return beat, energy
}

// lowBandRMS is the RMS of the lowest n bands of every channel.
func lowBandRMS(values []float64, channels, n int) float64 {
	if channels < 1 || len(values) == 0 {
		return 0
	}
	bins := len(values) / channels
	n = min(n, bins)
	if n == 0 {
		return 0
	}

	var sumSquare float64
	for c := range channels {
		for _, v := range values[c*bins : c*bins+n] {
			sumSquare += v * v
		}
	}
	return math.Sqrt(sumSquare / float64(channels*n))
}
