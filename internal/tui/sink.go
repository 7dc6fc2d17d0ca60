// SPDX-License-Identifier: MIT
package tui

import (
	"sync"
	"sync/atomic"

	"spectra/internal/transport"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender is the part of *tea.Program the sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink is a transport feeding a running bubbletea program. tea.Program.Send
// blocks until the program reads the message, so the sink keeps only the
// latest frame and forwards it from its own goroutine.
type Sink struct {
	program Sender

	latest atomic.Pointer[transport.Frame]
	wake   chan struct{}
	kicks  chan *transport.Kick
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewSink starts forwarding to program.
func NewSink(program Sender) *Sink {
	s := &Sink{
		program: program,
		wake:    make(chan struct{}, 1),
		kicks:   make(chan *transport.Kick, 8),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.forward()
	return s
}

// Send hands frames and kicks to the program without blocking. Frames the
// program has not picked up yet are replaced.
func (s *Sink) Send(data any) error {
	select {
	case <-s.done:
		return transport.ErrClosed
	default:
	}

	switch v := data.(type) {
	case *transport.Frame:
		f := *v
		f.Values = append([]float64(nil), v.Values...)
		s.latest.Store(&f)
		select {
		case s.wake <- struct{}{}:
		default:
		}
	case *transport.Kick:
		select {
		case s.kicks <- v:
		default:
		}
	}
	return nil
}

func (s *Sink) forward() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case k := <-s.kicks:
			s.program.Send(KickMsg{Kick: k})
		case <-s.wake:
			if f := s.latest.Swap(nil); f != nil {
				s.program.Send(FrameMsg{Frame: f})
			}
		}
	}
}

// Close stops forwarding. It does not quit the program.
func (s *Sink) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

var _ transport.Transport = (*Sink)(nil)
