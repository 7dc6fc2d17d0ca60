// SPDX-License-Identifier: MIT
//
// Package utils holds helpers shared by the test suites: a recording
// transport and synthetic signal generators.
package utils

import (
	"sync"

	"spectra/internal/transport"
)

// MockTransport implements transport.Transport by recording everything
// it is sent. It is safe for concurrent use.
type MockTransport struct {
	mu     sync.Mutex
	msgs   []any
	frames []*transport.Frame
	kicks  []*transport.Kick
	err    error
	closed bool
}

// Send records frames and kicks. Frame values are copied since senders
// reuse their buffers.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	switch v := data.(type) {
	case *transport.Frame:
		f := *v
		f.Values = append([]float64(nil), v.Values...)
		m.frames = append(m.frames, &f)
		m.msgs = append(m.msgs, &f)
	case *transport.Kick:
		k := *v
		m.kicks = append(m.kicks, &k)
		m.msgs = append(m.msgs, &k)
	}
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// FailWith makes every following Send return err. A nil err restores
// normal recording.
func (m *MockTransport) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Messages returns the frames and kicks in the order they were sent.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.msgs...)
}

// Frames returns the frames received so far.
func (m *MockTransport) Frames() []*transport.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*transport.Frame(nil), m.frames...)
}

// LastFrame returns the most recent frame, or nil.
func (m *MockTransport) LastFrame() *transport.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

// Kicks returns the kicks received so far.
func (m *MockTransport) Kicks() []*transport.Kick {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*transport.Kick(nil), m.kicks...)
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ transport.Transport = (*MockTransport)(nil)
