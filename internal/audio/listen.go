// SPDX-License-Identifier: MIT
package audio

import "sync/atomic"

type tickListener struct {
	fn func(tick []float64)
}

// broadcaster hands every tick to at most one listener. The audio thread
// only performs an atomic load, registration never blocks it.
type broadcaster struct {
	current atomic.Pointer[tickListener]
}

// Listen registers fn as the tick listener, replacing any previous one. fn
// runs on the audio thread and must not retain the slice. The returned func
// unregisters fn and is a no-op once another listener took its place.
func (b *broadcaster) Listen(fn func(tick []float64)) (stop func()) {
	l := &tickListener{fn: fn}
	b.current.Store(l)
	return func() { b.current.CompareAndSwap(l, nil) }
}

func (b *broadcaster) emit(tick []float64) {
	if l := b.current.Load(); l != nil {
		l.fn(tick)
	}
}
