// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"spectra/internal/config"
	applog "spectra/internal/log"
	"spectra/internal/pipeline"
	"spectra/internal/transport"
	"spectra/internal/transport/udp"
	"spectra/internal/tui"
)

// logInterval bounds the log sink to one frame line per second.
const logInterval = time.Second

// sinks builds the transport behind every consumer and owns their lifetime.
// Consumers on the websocket sink share one server.
type sinks struct {
	cfg     *config.Config
	program tui.Sender

	ws      *transport.WebSocketTransport
	adv     *transport.Advertiser
	closers []io.Closer
}

func newSinks(cfg *config.Config, program tui.Sender) *sinks {
	return &sinks{cfg: cfg, program: program}
}

// forConsumer returns the transport consumer cc sends to, wrapped in beat
// detection when the consumer asks for it.
func (s *sinks) forConsumer(cc config.ConsumerConfig) (transport.Transport, error) {
	var (
		t   transport.Transport
		err error
	)
	switch cc.Sink {
	case config.SinkWebSocket:
		t, err = s.websocket()
	case config.SinkUDP:
		t, err = s.udp()
	case config.SinkLog:
		t = s.track(transport.NewLoggingTransport(logInterval))
	case config.SinkMonitor:
		if s.program == nil {
			return nil, fmt.Errorf("consumer %q: monitor sink needs the terminal monitor", cc.ID)
		}
		t = s.track(tui.NewSink(s.program))
	default:
		return nil, fmt.Errorf("consumer %q: unknown sink %q", cc.ID, cc.Sink)
	}
	if err != nil {
		return nil, fmt.Errorf("consumer %q: %w", cc.ID, err)
	}
	if cc.BeatDetection {
		t = pipeline.NewBeatSink(t)
	}
	return t, nil
}

func (s *sinks) track(t transport.Transport) transport.Transport {
	s.closers = append(s.closers, t)
	return t
}

// websocket starts the shared server on first use, and its mDNS
// advertisement when enabled.
func (s *sinks) websocket() (transport.Transport, error) {
	if s.ws != nil {
		return s.ws, nil
	}
	wc := s.cfg.Transport.WebSocket
	if !wc.Enabled {
		return nil, errors.New("transport.websocket is disabled")
	}

	ws := transport.NewWebSocketTransport(wc.Address, wc.Path)
	if err := ws.Start(); err != nil {
		ws.Close()
		return nil, fmt.Errorf("starting websocket server: %w", err)
	}
	s.ws = ws
	s.track(ws)

	if mc := s.cfg.Transport.MDNS; mc.Enabled {
		adv, err := transport.NewAdvertiser(mc.Instance, mc.Service, ws.Port(), ws.Path())
		if err == nil {
			err = adv.Start()
		}
		if err != nil {
			// Clients can still connect by address.
			applog.Warnf("Transport: mDNS advertisement unavailable: %v", err)
		} else {
			s.adv = adv
		}
	}
	return ws, nil
}

// udp returns a publisher of its own, each consumer keeps its latest frame.
func (s *sinks) udp() (transport.Transport, error) {
	uc := s.cfg.Transport.UDP
	if !uc.Enabled {
		return nil, errors.New("transport.udp is disabled")
	}
	sender, err := udp.NewUDPSender(uc.TargetAddress)
	if err != nil {
		return nil, err
	}
	pub, err := udp.NewUDPPublisher(uc.SendInterval, sender)
	if err != nil {
		sender.Close()
		return nil, err
	}
	pub.Start()
	return s.track(pub), nil
}

// Close shuts every transport down, the advertisement first.
func (s *sinks) Close() error {
	var errs []error
	if s.adv != nil {
		errs = append(errs, s.adv.Close())
	}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
