// SPDX-License-Identifier: MIT
//
// Package transport delivers consumer output to the outside world.
package transport

import (
	"fmt"
	"math"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe and must not block the caller on
// slow receivers.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types carried in the "type" field.
const (
	TypeFrame = "frame"
	TypeKick  = "kick"
)

// Frame is one smoothed output of a consumer.
type Frame struct {
	Type      string    `json:"type"`
	Consumer  string    `json:"consumer"`
	Timestamp float64   `json:"timestamp"` // ms on the pipeline clock
	Channels  int       `json:"channels"`
	Length    int       `json:"length"` // values per channel
	Peak      float64   `json:"peak"`
	Values    []float64 `json:"values"` // channel-major
}

// NewFrame builds a frame over values, which must hold channels x length
// entries. values is not copied.
func NewFrame(consumer string, ts float64, channels int, peak float64, values []float64) (*Frame, error) {
	if channels < 1 || len(values)%channels != 0 {
		return nil, fmt.Errorf("transport: %d values do not split into %d channels", len(values), channels)
	}
	return &Frame{
		Type:      TypeFrame,
		Consumer:  consumer,
		Timestamp: ts,
		Channels:  channels,
		Length:    len(values) / channels,
		Peak:      peak,
		Values:    values,
	}, nil
}

// Channel returns the values of channel c.
func (f *Frame) Channel(c int) []float64 {
	return f.Values[c*f.Length : (c+1)*f.Length]
}

// Float32s converts the values for binary encodings, writing into dst when
// it is large enough.
func (f *Frame) Float32s(dst []float32) []float32 {
	if cap(dst) < len(f.Values) {
		dst = make([]float32, len(f.Values))
	}
	dst = dst[:len(f.Values)]
	for i, v := range f.Values {
		dst[i] = float32(v)
	}
	return dst
}

// Kick announces a beat detected in a consumer's output.
type Kick struct {
	Type      string  `json:"type"`
	Consumer  string  `json:"consumer"`
	Timestamp float64 `json:"timestamp"`
	Energy    float64 `json:"energy"`
}

// NewKick builds a kick event.
func NewKick(consumer string, ts, energy float64) *Kick {
	if math.IsNaN(energy) {
		energy = 0
	}
	return &Kick{Type: TypeKick, Consumer: consumer, Timestamp: ts, Energy: energy}
}
