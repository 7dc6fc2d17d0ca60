// SPDX-License-Identifier: MIT
package audio

import "math"

func (p *processor) EnableGate() {
	p.gateEnabled.Store(true)
}

func (p *processor) DisableGate() {
	p.gateEnabled.Store(false)
}

// GateEnabled reports whether the noise gate is active.
func (p *processor) GateEnabled() bool {
	return p.gateEnabled.Load()
}

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (p *processor) SetGateThreshold(threshold float64) {
	threshold = max(0, min(threshold, 1))
	p.gateThreshold.Store(fullScale(threshold))
}

// GetGateThreshold returns the current noise gate threshold as a float64.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (p *processor) GetGateThreshold() float64 {
	return float64(p.gateThreshold.Load()) / float64(math.MaxInt32)
}
