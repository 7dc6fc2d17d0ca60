// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"spectra/pkg/utils"
)

func testSpectrum(t testing.TB, inputChannels int) *Spectrum {
	t.Helper()
	s, err := NewSpectrum(SpectrumConfig{
		FFTSize:       testFFTSize,
		SampleRate:    testSampleRate,
		Window:        Hann,
		InputChannels: inputChannels,
	})
	if err != nil {
		t.Fatalf("NewSpectrum: %v", err)
	}
	return s
}

func pcm(channels int, perChannel ...[]float64) []int32 {
	frames := len(perChannel[0])
	out := make([]int32, frames*channels)
	for i := range frames {
		for c := range channels {
			out[i*channels+c] = int32(perChannel[c][i] * math.MaxInt32)
		}
	}
	return out
}

func TestBinnerLayout(t *testing.T) {
	p := newTestProcessor(t)
	b, err := NewBinner(DefaultBins, DefaultMinHz, DefaultMaxHz, p)
	if err != nil {
		t.Fatal(err)
	}
	if b.Len() != DefaultBins {
		t.Fatalf("Len = %d", b.Len())
	}
	prevHigh := DefaultMinHz
	for k := range b.Len() {
		low, high := b.Edges(k)
		if math.Abs(low-prevHigh) > 1e-9 || high <= low {
			t.Fatalf("band %d = [%v, %v), previous high %v", k, low, high, prevHigh)
		}
		prevHigh = high
	}
	if math.Abs(prevHigh-DefaultMaxHz) > 1e-6 {
		t.Errorf("last band ends at %v, want %v", prevHigh, DefaultMaxHz)
	}
}

func TestBinnerValidation(t *testing.T) {
	p := newTestProcessor(t)
	if _, err := NewBinner(0, 20, 1000, p); err == nil {
		t.Error("expected error for zero bands")
	}
	if _, err := NewBinner(8, 500, 100, p); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := NewBinner(8, 100, 1e6, p); err != nil {
		t.Errorf("range above Nyquist should be clipped, got %v", err)
	}
}

func TestBinnerNoEmptyBands(t *testing.T) {
	// A small FFT has bins much wider than the lowest log bands.
	p, _ := NewFFTProcessor(256, testSampleRate, Hann)
	b, err := NewBinner(DefaultBins, DefaultMinHz, DefaultMaxHz, p)
	if err != nil {
		t.Fatal(err)
	}
	mags := make([]float64, 129)
	for i := range mags {
		mags[i] = 1
	}
	dst := make([]float64, b.Len())
	b.Bin(mags, dst)
	for k, v := range dst {
		if v != 1 {
			t.Errorf("band %d = %v, want 1", k, v)
		}
	}
}

func TestSpectrumShapeAndChannels(t *testing.T) {
	s := testSpectrum(t, 2)
	if s.TickLen() != 2*DefaultBins {
		t.Fatalf("TickLen = %d", s.TickLen())
	}

	left := sine(200, 0.8, testFFTSize)
	right := sine(5000, 0.8, testFFTSize)
	dst := make([]float64, s.TickLen())
	s.Process(pcm(2, left, right), dst)

	l := utils.FindPeakBin(dst, 0, DefaultBins-1)
	r := utils.FindPeakBin(dst, DefaultBins, 2*DefaultBins-1) - DefaultBins
	if !(l < r) {
		t.Errorf("left peak band %d should be below right peak band %d", l, r)
	}
}

func TestSpectrumMonoDuplicated(t *testing.T) {
	s := testSpectrum(t, 1)
	dst := make([]float64, s.TickLen())
	s.Process(pcm(1, sine(1000, 0.5, testFFTSize)), dst)
	for k := range DefaultBins {
		if dst[k] != dst[DefaultBins+k] {
			t.Fatalf("band %d differs between channels: %v vs %v", k, dst[k], dst[DefaultBins+k])
		}
	}
}

func TestSpectrumSilence(t *testing.T) {
	s := testSpectrum(t, 2)
	dst := make([]float64, s.TickLen())
	for i := range dst {
		dst[i] = 7
	}
	s.Process(make([]int32, 2*testFFTSize), dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("value %d = %v for silent input", i, v)
		}
	}
}

func TestSpectrumHotPath(t *testing.T) {
	s := testSpectrum(t, 2)
	in := pcm(2, sine(440, 0.5, testFFTSize), sine(880, 0.5, testFFTSize))
	dst := make([]float64, s.TickLen())
	s.Process(in, dst)
	if allocs := testing.AllocsPerRun(50, func() { s.Process(in, dst) }); allocs > 0 {
		t.Errorf("Expected zero allocations in Spectrum.Process, got %.1f", allocs)
	}
}

func TestBeatDetector(t *testing.T) {
	d := NewBeatDetector(0.1, 1.5, 2)
	quiet := []float64{0.05, 0.05, 0, 0, 0.05, 0.05, 0, 0}
	loud := []float64{0.9, 0.9, 0, 0, 0.9, 0.9, 0, 0}

	if beat, _ := d.Process(quiet, 2); beat {
		t.Error("quiet frame below threshold reported a beat")
	}
	if beat, e := d.Process(loud, 2); !beat || math.Abs(e-0.9) > 1e-12 {
		t.Errorf("loud frame: beat=%v energy=%v, want true 0.9", beat, e)
	}
	if beat, _ := d.Process(loud, 2); beat {
		t.Error("sustained energy reported a second beat")
	}
}
