// SPDX-License-Identifier: MIT
//
// Package smooth reduces a window of recent ticks into the single buffer a
// consumer renders. Every consumer smooths its own window with its own factor.
package smooth

import (
	"math"
	"time"

	applog "spectra/internal/log"
	"spectra/internal/sample"
)

// DefaultWeightBase is the recency base of the weighted mean.
const DefaultWeightBase = 6.0

// interpolationReach is how much of the step toward the current frame a
// fully smoothed (s = 1) lerp holds back.
const interpolationReach = 0.35

var rescaleWarnings = applog.NewThrottle(time.Second)

// Result is a reduced buffer and its peak. Data is nil only for an empty window.
type Result struct {
	Data *sample.Buffer
	Peak float64
}

// Smoother holds the tuning shared by every reduction.
type Smoother struct {
	WeightBase float64
}

// New returns a Smoother with the default weight base.
func New() *Smoother {
	return &Smoother{WeightBase: DefaultWeightBase}
}

func (s *Smoother) base() float64 {
	if s == nil || s.WeightBase <= 1 || math.IsInf(s.WeightBase, 0) {
		return DefaultWeightBase
	}
	return s.WeightBase
}

func clampFactor(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return min(1, max(0, f))
}

// Reduce computes the weighted mean of window, oldest first, whose last
// element is the current frame. With factor f the i-th of N frames weighs
// base^((i/(N-1) - 1)/f) and the current frame weighs 1, so the newest frame
// dominates more as f drops toward 0. Frames whose shape differs from the
// current frame are skipped.
func (s *Smoother) Reduce(window []*sample.Buffer, f float64) Result {
	n := len(window)
	if n == 0 || window[n-1] == nil {
		return Result{}
	}
	current := window[n-1]
	if n == 1 {
		return finish(current.Clone())
	}

	f = clampFactor(f)
	base := s.base()

	sum := current.Raw()
	total := 1.0
	tmp := make([]float64, len(sum))
	for i, frame := range window[:n-1] {
		if !current.SameShape(frame) {
			continue
		}
		var w float64
		if f > 0 {
			x := float64(i) / float64(n-1)
			w = math.Pow(base, (x-1)/f)
		}
		if w == 0 {
			continue
		}
		frame.RawInto(tmp)
		for j, v := range tmp {
			sum[j] += w * v
		}
		total += w
	}
	inv := 1 / total
	for j := range sum {
		sum[j] *= inv
	}
	return finish(sample.MustNew(sum, current.Channels()))
}

// Interpolate moves from prev toward current by k = 1 - 0.35f, so f = 0
// returns current unchanged. A nil prev, or one of a different shape,
// passes current through.
func (s *Smoother) Interpolate(prev, current *sample.Buffer, f float64) Result {
	if current == nil {
		return Result{}
	}
	if !current.SameShape(prev) {
		return finish(current.Clone())
	}
	k := 1 - interpolationReach*clampFactor(f)
	from := prev.Raw()
	to := current.Raw()
	for j := range from {
		from[j] += (to[j] - from[j]) * k
	}
	return finish(sample.MustNew(from, current.Channels()))
}

// finish rescales data so no value exceeds 1 and reports its peak.
func finish(data *sample.Buffer) Result {
	peak := data.Max()
	if peak > 1 {
		rescaleWarnings.Warnf("Smoother: reduced peak %.4f above 1, rescaling", peak)
		inv := 1 / peak
		data = data.Map(func(_ int, v float64) float64 { return v * inv })
		peak = data.Max()
	}
	return Result{Data: data, Peak: peak}
}
