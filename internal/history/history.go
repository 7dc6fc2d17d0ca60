// SPDX-License-Identifier: MIT
//
// Package history keeps the last second of processed ticks ordered by
// timestamp, so a render callback can ask for the audio "at" any display time
// and get an eased blend of the two ticks around it.
package history

import (
	"math"
	"sort"

	applog "spectra/internal/log"
	"spectra/internal/sample"
)

const (
	DefaultRetention  = 1000.0 // ms
	DefaultMaxDelay   = 200.0  // ms
	DefaultDelayDecay = 1.0    // ms per insertion
)

// Frame is one retained tick.
type Frame struct {
	Timestamp float64
	Data      *sample.Buffer
}

// History is a sorted slice of frames. Not safe for concurrent use; all
// mutation happens on the render goroutine.
type History struct {
	frames     []Frame
	retention  float64
	maxDelay   float64
	delayDecay float64
	delay      float64
}

// Option configures a History.
type Option func(*History)

// WithRetention sets how far behind the newest insertion frames are kept.
func WithRetention(ms float64) Option {
	return func(h *History) {
		if ms > 0 {
			h.retention = ms
		}
	}
}

// WithMaxDelay caps the adaptive delay estimate.
func WithMaxDelay(ms float64) Option {
	return func(h *History) {
		if ms >= 0 {
			h.maxDelay = ms
		}
	}
}

// WithDelayDecay sets how much the delay shrinks per insertion when the
// newest gap is not larger than the current estimate.
func WithDelayDecay(ms float64) Option {
	return func(h *History) {
		if ms >= 0 {
			h.delayDecay = ms
		}
	}
}

// New returns an empty History.
func New(opts ...Option) *History {
	h := &History{
		retention:  DefaultRetention,
		maxDelay:   DefaultMaxDelay,
		delayDecay: DefaultDelayDecay,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Push inserts data at ts, prunes frames that fell out of retention and
// updates the delay estimate. Frames with equal timestamps keep insertion
// order.
func (h *History) Push(ts float64, data *sample.Buffer) {
	if data == nil {
		return
	}
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		applog.Warnf("History: dropping frame with timestamp %v", ts)
		return
	}
	f := Frame{Timestamp: ts, Data: data}
	n := len(h.frames)
	switch {
	case n == 0 || ts >= h.frames[n-1].Timestamp:
		h.frames = append(h.frames, f)
	case ts < h.frames[0].Timestamp:
		h.frames = append(h.frames, Frame{})
		copy(h.frames[1:], h.frames)
		h.frames[0] = f
	default:
		i := sort.Search(n, func(i int) bool { return h.frames[i].Timestamp > ts })
		h.frames = append(h.frames, Frame{})
		copy(h.frames[i+1:], h.frames[i:])
		h.frames[i] = f
	}

	h.DeleteOlderThan(h.frames[len(h.frames)-1].Timestamp - h.retention)
	h.updateDelay()
}

func (h *History) updateDelay() {
	n := len(h.frames)
	if n < 2 {
		return
	}
	gap := h.frames[n-1].Timestamp - h.frames[n-2].Timestamp
	if gap > h.delay {
		h.delay = min(gap, h.maxDelay)
		return
	}
	h.delay = max(0, h.delay-h.delayDecay)
}

// DeleteOlderThan drops every frame with a timestamp at or before cutoff.
func (h *History) DeleteOlderThan(cutoff float64) {
	i := sort.Search(len(h.frames), func(i int) bool { return h.frames[i].Timestamp > cutoff })
	if i == 0 {
		return
	}
	n := copy(h.frames, h.frames[i:])
	clear(h.frames[n:])
	h.frames = h.frames[:n]
}

// Frame returns the data that represents ts. Between two frames the values
// are cosine-eased; outside the retained range the nearest endpoint is
// returned. The result is always an owned copy, nil when empty.
func (h *History) Frame(ts float64) *sample.Buffer {
	n := len(h.frames)
	if n == 0 {
		return nil
	}
	if ts <= h.frames[0].Timestamp {
		return h.frames[0].Data.Clone()
	}
	if ts >= h.frames[n-1].Timestamp {
		return h.frames[n-1].Data.Clone()
	}

	// First frame strictly after ts; the one before it is at or below ts.
	i := sort.Search(n, func(i int) bool { return h.frames[i].Timestamp > ts })
	a, b := h.frames[i-1], h.frames[i]
	if a.Timestamp == ts {
		return a.Data.Clone()
	}
	if !a.Data.SameShape(b.Data) {
		applog.Warnf("History: frames at %.1fms and %.1fms differ in shape, not interpolating", a.Timestamp, b.Timestamp)
		return b.Data.Clone()
	}

	t := (ts - a.Timestamp) / (b.Timestamp - a.Timestamp)
	k := 0.5 * (1 - math.Cos(t*math.Pi))
	from, to := a.Data.Raw(), b.Data.Raw()
	for j := range from {
		from[j] += (to[j] - from[j]) * k
	}
	out, err := sample.New(from, a.Data.Channels())
	if err != nil {
		// Shape was checked above.
		panic(err)
	}
	return out
}

// Since returns every frame with a timestamp at or after ts, most recent first.
func (h *History) Since(ts float64) []Frame {
	i := sort.Search(len(h.frames), func(i int) bool { return h.frames[i].Timestamp >= ts })
	out := make([]Frame, 0, len(h.frames)-i)
	for j := len(h.frames) - 1; j >= i; j-- {
		out = append(out, Frame{Timestamp: h.frames[j].Timestamp, Data: h.frames[j].Data.Clone()})
	}
	return out
}

// Delay returns the current adaptive delay estimate in ms. Readers look up
// Frame(now - Delay()) so there is usually a newer frame to ease toward.
func (h *History) Delay() float64 { return h.delay }

// Len returns the number of retained frames.
func (h *History) Len() int { return len(h.frames) }

// Newest returns the most recent frame.
func (h *History) Newest() (Frame, bool) {
	if len(h.frames) == 0 {
		return Frame{}, false
	}
	f := h.frames[len(h.frames)-1]
	return Frame{Timestamp: f.Timestamp, Data: f.Data.Clone()}, true
}

// Reset drops every frame and the delay estimate.
func (h *History) Reset() {
	clear(h.frames)
	h.frames = h.frames[:0]
	h.delay = 0
}
