// SPDX-License-Identifier: MIT
//
// Package analysis turns blocks of PCM audio into the per-channel magnitude
// ticks the preprocessor consumes.
package analysis

// FrequencyProvider maps FFT bins to frequencies. It decouples the band
// binner from the FFT implementation.
type FrequencyProvider interface {
	FrequencyForBin(binIndex int) float64 // Center frequency (Hz) of an FFT bin.
	FFTSize() int                         // Number of points of the FFT.
	SampleRate() float64                  // Sample rate used for the analysis.
}

// TickProcessor consumes interleaved 32-bit PCM and writes one tick of
// channel-major magnitudes into dst.
type TickProcessor interface {
	Process(interleaved []int32, dst []float64)
	TickLen() int
}
