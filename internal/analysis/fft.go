// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"

	applog "spectra/internal/log"
	"spectra/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // FFT complex results.
	magnitude []float64    // Magnitudes of the last Process call.
	window    []float64    // Pre-calculated window coefficients.
}

// FFTProcessor computes the magnitude spectrum of one channel. It is driven
// from a single goroutine (the audio callback or the file reader) and holds
// no locks; readers copy results out with MagnitudesInto.
type FFTProcessor struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	scale         float64 // maps a full-scale sine to magnitude ~1
	workspace     fftWorkspace
}

var _ FrequencyProvider = (*FFTProcessor)(nil)

// NewFFTProcessor returns a processor for fftSize points (a power of two) at
// sampleRate Hz using the given window.
func NewFFTProcessor(fftSize int, sampleRate float64, windowType WindowFunc) (*FFTProcessor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	// Coherent gain of the window: a sine of amplitude A peaks at A*sum(w)/2.
	var sum float64
	for _, w := range windowCoeffs {
		sum += w
	}
	scale := 1.0
	if sum > 0 {
		scale = 2 / sum
	}

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	applog.Debugf("Analysis: Initializing FFTProcessor (Size: %d, SampleRate: %.1f Hz, Window: %v)", fftSize, sampleRate, windowType)

	return &FFTProcessor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		scale:         scale,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Process windows samples (normalized to [-1, 1], zero-padded or truncated
// to the FFT size), transforms them and stores the magnitudes. No allocations.
func (p *FFTProcessor) Process(samples []float64) {
	n := min(len(samples), p.fftSize)
	for i := range n {
		p.workspace.input[i] = samples[i] * p.workspace.window[i]
	}
	clear(p.workspace.input[n:])

	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)

	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c) * p.scale
	}
}

// Magnitudes returns a copy of the latest magnitudes.
func (p *FFTProcessor) Magnitudes() []float64 {
	out := make([]float64, len(p.workspace.magnitude))
	copy(out, p.workspace.magnitude)
	return out
}

// MagnitudesInto copies the latest magnitudes into dest, which must hold
// exactly FFTSize()/2+1 values.
func (p *FFTProcessor) MagnitudesInto(dest []float64) error {
	if len(dest) != len(p.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dest), len(p.workspace.magnitude))
	}
	copy(dest, p.workspace.magnitude)
	return nil
}

// FrequencyForBin returns the center frequency (Hz) of an FFT bin, 0 when
// the index is out of range.
func (p *FFTProcessor) FrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.fftOutput) {
		return 0.0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

// FFTSize returns the configured number of points.
func (p *FFTProcessor) FFTSize() int { return p.fftSize }

// SampleRate returns the configured sample rate (Hz).
func (p *FFTProcessor) SampleRate() float64 { return p.sampleRate }

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window funcs multiply in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
