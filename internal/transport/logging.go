// SPDX-License-Identifier: MIT
package transport

import (
	"time"

	applog "spectra/internal/log"
)

// LoggingTransport implements the Transport interface by logging data to the console.
type LoggingTransport struct {
	throttle *applog.Throttle
}

// NewLoggingTransport creates a LoggingTransport that logs at most one
// message per interval.
func NewLoggingTransport(interval time.Duration) *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{throttle: applog.NewThrottle(interval)}
}

// Send logs a summary of frames and every kick.
func (lt *LoggingTransport) Send(data any) error {
	switch v := data.(type) {
	case *Frame:
		lt.throttle.Infof("LOG_TRANSPORT: %s @ %.1fms peak=%.3f (%d x %d)",
			v.Consumer, v.Timestamp, v.Peak, v.Channels, v.Length)
	case *Kick:
		applog.Infof("LOG_TRANSPORT: %s kick @ %.1fms energy=%.3f", v.Consumer, v.Timestamp, v.Energy)
	default:
		lt.throttle.Infof("LOG_TRANSPORT: Received (%T): %+v", data, data)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
