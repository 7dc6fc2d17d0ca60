// SPDX-License-Identifier: MIT
//
// Package sample holds the fixed-shape container that carries one tick of
// frequency magnitudes through the pipeline.
//
// Storage is flat and channel-major: all of channel 0, then all of channel 1.
// Every accessor returns an owned copy, so a render callback may keep or
// mutate what it reads without affecting the buffer it came from.
package sample

import (
	"errors"
	"fmt"
	"iter"
)

// ErrShape is returned when the raw length is not a whole number of samples
// for the requested channel count.
var ErrShape = errors.New("sample: raw length is not divisible by channel count")

// Buffer is a multi-channel block of magnitudes.
type Buffer struct {
	raw      []float64
	length   int
	channels int
}

// New copies raw into a Buffer with the given channel count.
func New(raw []float64, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("%w: channels=%d", ErrShape, channels)
	}
	if len(raw)%channels != 0 {
		return nil, fmt.Errorf("%w: len=%d channels=%d", ErrShape, len(raw), channels)
	}
	data := make([]float64, len(raw))
	copy(data, raw)
	return &Buffer{raw: data, length: len(raw) / channels, channels: channels}, nil
}

// MustNew is like New but panics on a shape error. Intended for fixtures and
// package-level tables.
func MustNew(raw []float64, channels int) *Buffer {
	b, err := New(raw, channels)
	if err != nil {
		panic(err)
	}
	return b
}

// Zero returns a buffer of length samples per channel, all zero.
func Zero(length, channels int) (*Buffer, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: length=%d", ErrShape, length)
	}
	return New(make([]float64, length*channels), channels)
}

// fromOwned wraps a slice the caller gives up ownership of. Shape is checked
// by the caller.
func fromOwned(raw []float64, channels int) *Buffer {
	return &Buffer{raw: raw, length: len(raw) / channels, channels: channels}
}

// Len returns the number of samples per channel.
func (b *Buffer) Len() int { return b.length }

// Channels returns the number of channels.
func (b *Buffer) Channels() int { return b.channels }

// Raw returns a copy of the flat channel-major data.
func (b *Buffer) Raw() []float64 {
	out := make([]float64, len(b.raw))
	copy(out, b.raw)
	return out
}

// RawInto copies the flat data into dst and returns the number of values
// written. Hot paths use it to avoid the allocation in Raw.
func (b *Buffer) RawInto(dst []float64) int {
	return copy(dst, b.raw)
}

// At returns a single value by flat index.
func (b *Buffer) At(i int) float64 {
	if i < 0 || i >= len(b.raw) {
		panic(fmt.Sprintf("sample: flat index %d out of range [0,%d)", i, len(b.raw)))
	}
	return b.raw[i]
}

// Sample returns the i-th sample of every channel, in channel order.
func (b *Buffer) Sample(i int) []float64 {
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("sample: index %d out of range [0,%d)", i, b.length))
	}
	out := make([]float64, b.channels)
	for c := range b.channels {
		out[c] = b.raw[c*b.length+i]
	}
	return out
}

// Channel returns a copy of channel c.
func (b *Buffer) Channel(c int) []float64 {
	if c < 0 || c >= b.channels {
		panic(fmt.Sprintf("sample: channel %d out of range [0,%d)", c, b.channels))
	}
	out := make([]float64, b.length)
	copy(out, b.raw[c*b.length:(c+1)*b.length])
	return out
}

// Max returns the largest value across all channels, 0 for an empty buffer.
func (b *Buffer) Max() float64 {
	if len(b.raw) == 0 {
		return 0
	}
	m := b.raw[0]
	for _, v := range b.raw[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Clear zero-fills the buffer in place.
func (b *Buffer) Clear() {
	clear(b.raw)
}

// Clone returns an independent copy.
func (b *Buffer) Clone() *Buffer {
	return fromOwned(b.Raw(), b.channels)
}

// SameShape reports whether o has the same length and channel count.
func (b *Buffer) SameShape(o *Buffer) bool {
	return o != nil && b.length == o.length && b.channels == o.channels
}

// All iterates the samples in order, yielding the index and a fresh
// per-channel vector for each.
func (b *Buffer) All() iter.Seq2[int, []float64] {
	return func(yield func(int, []float64) bool) {
		for i := range b.length {
			if !yield(i, b.Sample(i)) {
				return
			}
		}
	}
}

// Map returns a new buffer of the same shape with fn applied to every value.
func (b *Buffer) Map(fn func(i int, v float64) float64) *Buffer {
	out := make([]float64, len(b.raw))
	for i, v := range b.raw {
		out[i] = fn(i, v)
	}
	return fromOwned(out, b.channels)
}
