// SPDX-License-Identifier: MIT
package utils

import "math"

const fullScale = math.MaxInt32 * 0.9

// GenerateSineWave returns size frames of a sine at frequency Hz,
// interleaved across channels, as 32-bit PCM at 90% of full scale.
func GenerateSineWave(size, channels int, sampleRate, frequency float64) []int32 {
	buffer := make([]int32, size*channels)
	for i := range size {
		t := float64(i) / sampleRate
		v := int32(math.Sin(2*math.Pi*frequency*t) * fullScale)
		for c := range channels {
			buffer[i*channels+c] = v
		}
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics,
// interleaved across channels.
func GenerateComplexWave(size, channels int, sampleRate float64) []int32 {
	buffer := make([]int32, size*channels)
	for i := range size {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		v := int32(signal * fullScale)
		for c := range channels {
			buffer[i*channels+c] = v
		}
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], with the range clipped to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	startBin = max(0, startBin)
	endBin = min(len(magnitudes)-1, endBin)

	peakBin := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > magnitudes[peakBin] {
			peakBin = bin
		}
	}
	return peakBin
}
