// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	applog "spectra/internal/log"
)

// writeTimeout bounds a single datagram write, a full socket buffer must
// not stall the publisher tick.
const writeTimeout = 50 * time.Millisecond

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender closed")

var sendWarnings = applog.NewThrottle(5 * time.Second)

// UDPSender writes datagrams to one connected target.
type UDPSender struct {
	mu     sync.Mutex // guards conn
	conn   *net.UDPConn
	target string

	packets atomic.Uint64
	bytes   atomic.Uint64
	failed  atomic.Uint64
}

// NewUDPSender dials targetAddress ("host:port"). UDP is connectionless,
// so this succeeds whether or not anything is listening.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolving UDP target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dialing UDP target %q: %w", targetAddress, err)
	}
	applog.Infof("UDP Sender: Sending to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn, target: conn.RemoteAddr().String()}, nil
}

// Target returns the resolved remote address.
func (s *UDPSender) Target() string { return s.target }

// Send writes data as one datagram.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrSenderClosed
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	n, err := s.conn.Write(data)
	if err != nil {
		s.failed.Add(1)
		// Nobody listening is normal for UDP, keep the log quiet.
		sendWarnings.Warnf("UDP Sender: Error sending to %s: %v", s.target, err)
		return fmt.Errorf("sending UDP packet: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats returns datagrams sent, bytes sent and failed writes.
func (s *UDPSender) Stats() (packets, bytes, failed uint64) {
	return s.packets.Load(), s.bytes.Load(), s.failed.Load()
}

// Close releases the socket. Later calls are no-ops.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	packets, bytes, failed := s.Stats()
	applog.Debugf("UDP Sender: Closing %s after %d packets (%d bytes, %d failed)", s.target, packets, bytes, failed)
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("closing UDP connection: %w", err)
	}
	return nil
}
