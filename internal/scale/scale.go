// SPDX-License-Identifier: MIT
//
// Package scale builds the per-magnitude response curves applied by the
// preprocessor. A Config selects one curve and its parameters; New turns it
// into a plain func so the hot loop never switches on the selector.
package scale

import (
	"fmt"
	"math"
	"strings"

	applog "spectra/internal/log"

	"gonum.org/v1/gonum/stat/distuv"
)

// Function selects a response curve.
type Function int

const (
	Linear Function = iota
	Power
	Exponential
	Logarithm
	LogarithmPower
	Gaussian
)

// Func maps one magnitude to its scaled value.
type Func func(x float64) float64

// Defaults used when a parameter is missing or degenerate.
const (
	DefaultExponent          = 2.0
	DefaultExponentialBase   = 2.0
	DefaultLogarithmBase     = 10.0
	DefaultLogarithmWeight   = 0.5
	DefaultGaussianMean      = 1.0
	DefaultGaussianDeviation = 0.5
)

// Config selects a curve and carries the parameters of every curve; only the
// fields of the selected one are read.
type Config struct {
	Function          Function
	Exponent          float64 // Power, LogarithmPower
	ExponentialBase   float64 // Exponential
	LogarithmBase     float64 // Logarithm, LogarithmPower
	LogarithmWeight   float64 // LogarithmPower: share of the log term, 0-1
	GaussianMean      float64 // Gaussian
	GaussianDeviation float64 // Gaussian
}

// DefaultConfig returns a linear curve with every parameter at its default.
func DefaultConfig() Config {
	return Config{
		Function:          Linear,
		Exponent:          DefaultExponent,
		ExponentialBase:   DefaultExponentialBase,
		LogarithmBase:     DefaultLogarithmBase,
		LogarithmWeight:   DefaultLogarithmWeight,
		GaussianMean:      DefaultGaussianMean,
		GaussianDeviation: DefaultGaussianDeviation,
	}
}

// String returns the configuration name of the function.
func (f Function) String() string {
	switch f {
	case Linear:
		return "linear"
	case Power:
		return "power"
	case Exponential:
		return "exponential"
	case Logarithm:
		return "logarithm"
	case LogarithmPower:
		return "logarithm_power"
	case Gaussian:
		return "gaussian"
	default:
		return fmt.Sprintf("function(%d)", int(f))
	}
}

// ParseFunction converts a name (case-insensitive) to a Function. Unknown
// names return Linear and an error.
func ParseFunction(name string) (Function, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "":
		return Linear, nil
	case "power", "pow":
		return Power, nil
	case "exponential", "exp":
		return Exponential, nil
	case "logarithm", "log":
		return Logarithm, nil
	case "logarithm_power", "logarithm+power", "logpower":
		return LogarithmPower, nil
	case "gaussian", "gauss":
		return Gaussian, nil
	default:
		return Linear, fmt.Errorf("unknown scale function name: '%s'", name)
	}
}

// New returns the curve described by cfg. An unknown selector falls back to
// Linear with a warning, degenerate parameters fall back to their defaults.
// The returned func is pure.
func New(cfg Config) Func {
	switch cfg.Function {
	case Linear:
		return math.Abs

	case Power:
		n := exponent(cfg.Exponent)
		return func(x float64) float64 {
			return math.Pow(math.Abs(x), n)
		}

	case Exponential:
		base := positive(cfg.ExponentialBase, DefaultExponentialBase, "exponential base")
		return func(x float64) float64 {
			return math.Pow(base, x) - 1
		}

	case Logarithm:
		lnBase := logBase(cfg.LogarithmBase)
		return func(x float64) float64 {
			return math.Abs(math.Log1p(x) / lnBase)
		}

	case LogarithmPower:
		lnBase := logBase(cfg.LogarithmBase)
		a := cfg.LogarithmWeight
		if a < 0 || a > 1 {
			applog.Warnf("Scale: logarithm weight %.3f outside [0,1], using %.2f", a, DefaultLogarithmWeight)
			a = DefaultLogarithmWeight
		}
		n := exponent(cfg.Exponent)
		return func(x float64) float64 {
			return a*math.Log1p(x)/lnBase + (1-a)*math.Pow(math.Abs(x), n)
		}

	case Gaussian:
		sigma := positive(cfg.GaussianDeviation, DefaultGaussianDeviation, "gaussian deviation")
		dist := distuv.Normal{Mu: cfg.GaussianMean, Sigma: sigma}
		anchor := dist.Prob(0)
		return func(x float64) float64 {
			return dist.Prob(x) - anchor
		}

	default:
		applog.Warnf("Scale: unknown scale function %v, defaulting to linear", cfg.Function)
		return math.Abs
	}
}

// Apply runs fn over src, writing into dst. dst must be at least len(src).
func Apply(fn Func, dst, src []float64) {
	for i, v := range src {
		dst[i] = fn(v)
	}
}

func positive(v, fallback float64, name string) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	applog.Warnf("Scale: invalid %s %.3f, using %.2f", name, v, fallback)
	return fallback
}

// exponent rejects negative exponents, which blow up at x = 0.
func exponent(n float64) float64 {
	if n >= 0 && !math.IsInf(n, 0) {
		return n
	}
	applog.Warnf("Scale: invalid exponent %.3f, using %.0f", n, DefaultExponent)
	return DefaultExponent
}

// logBase returns ln(base), replacing bases for which the logarithm is undefined.
func logBase(base float64) float64 {
	if base <= 0 || base == 1 || math.IsInf(base, 0) || math.IsNaN(base) {
		applog.Warnf("Scale: invalid logarithm base %.3f, using %.0f", base, DefaultLogarithmBase)
		base = DefaultLogarithmBase
	}
	return math.Log(base)
}
