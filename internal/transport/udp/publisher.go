// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "spectra/internal/log"
	"spectra/internal/transport"
)

// HeaderSize is the length of the fixed packet header in bytes.
const HeaderSize = 4 + 8 + 2 + 2

// UDPPublisher sends the most recent frame it was given, packed into a
// binary packet, at most once per interval. Frames arriving faster than the
// interval replace each other, so a 60 fps consumer can feed a 30 Hz link.
// It runs in a separate goroutine managed by Start and Stop methods.
type UDPPublisher struct {
	sender   *UDPSender    // The underlying UDP sender instance.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker, doneChan and the pending frame.

	pending transport.Frame // Latest frame, Values owned by the publisher.
	fresh   bool            // pending has not been sent yet.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Buffers reused by buildAndSendPacket.
	sendValues   []float64
	udpF32Buffer []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond // Default to ~60Hz if invalid
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send stores a copy of a *transport.Frame for the next tick. Other
// messages are not carried over UDP and are ignored.
func (p *UDPPublisher) Send(data any) error {
	f, ok := data.(*transport.Frame)
	if !ok {
		return nil
	}
	if len(f.Values) > math.MaxUint16 || f.Channels > math.MaxUint16 {
		return fmt.Errorf("UDPPublisher: frame with %d values does not fit a packet", len(f.Values))
	}

	p.mu.Lock()
	values := append(p.pending.Values[:0], f.Values...)
	p.pending = *f
	p.pending.Values = values
	p.fresh = true
	p.mu.Unlock()
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	// Prevent starting if already running
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	// Initialize resources for this run
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{} // Reset stopOnce for this run

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock() // Unlock before starting the potentially long-running goroutine

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	// Check if already stopped or never started
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan) // Signal the goroutine to exit
		p.ticker.Stop()
		p.ticker = nil // Mark as stopped
	})

	p.mu.Unlock() // Unlock before waiting

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Channel Count     | uint16         | 2            | Channels (C)            |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Values            | []float32      | N * 4        | Channel-major values    |
+-----------------------------------------------------------------------------+
*/

// Packet is a decoded UDP packet.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Channels  int
	Values    []float32
}

// AppendPacket packs one packet into buf.
func AppendPacket(buf *bytes.Buffer, seq uint32, timestamp int64, channels int, values []float32) error {
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(channels))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(values)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, values)
	}
	return err
}

// DecodePacket parses a packet produced by the publisher.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, errors.New("udp: short packet")
	}
	p := Packet{
		Sequence:  binary.BigEndian.Uint32(data[0:]),
		Timestamp: int64(binary.BigEndian.Uint64(data[4:])),
		Channels:  int(binary.BigEndian.Uint16(data[12:])),
	}
	n := int(binary.BigEndian.Uint16(data[14:]))
	if len(data) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("udp: packet announces %d values but carries %d bytes", n, len(data)-HeaderSize)
	}
	p.Values = make([]float32, n)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(data[HeaderSize+4*i:]))
	}
	return p, nil
}

// buildAndSendPacket is the core function executed on each ticker interval.
// Nothing is sent when no new frame arrived since the last packet.
func (p *UDPPublisher) buildAndSendPacket() {
	p.mu.Lock()
	if !p.fresh {
		p.mu.Unlock()
		return
	}
	p.sendValues = append(p.sendValues[:0], p.pending.Values...)
	channels := p.pending.Channels
	p.fresh = false
	p.mu.Unlock()

	if cap(p.udpF32Buffer) < len(p.sendValues) {
		p.udpF32Buffer = make([]float32, len(p.sendValues))
	}
	p.udpF32Buffer = p.udpF32Buffer[:len(p.sendValues)]
	for i, v := range p.sendValues {
		p.udpF32Buffer[i] = float32(v)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := AppendPacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), channels, p.udpF32Buffer); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return // Skip sending this packet
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close stops the publisher goroutine and closes the sender.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, stopping publisher...")
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the transport interface at compile time.
var _ transport.Transport = (*UDPPublisher)(nil)
