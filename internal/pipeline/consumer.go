// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"time"

	"spectra/internal/config"
	"spectra/internal/history"
	applog "spectra/internal/log"
	"spectra/internal/ring"
	"spectra/internal/sample"
	"spectra/internal/smooth"
	"spectra/internal/transport"
)

// Consumer is one independently smoothed view of the history. Its render
// job runs on the scheduler goroutine.
type Consumer struct {
	ID   string
	Sink transport.Transport

	smoothing float64
	window    *ring.Buffer[*sample.Buffer]
	prev      *sample.Buffer

	hist     *history.History
	smoother *smooth.Smoother

	rangeWarnings *applog.Throttle
	sendWarnings  *applog.Throttle
	frames        uint64
}

func newConsumer(cc config.ConsumerConfig, sink transport.Transport, hist *history.History, smoother *smooth.Smoother) (*Consumer, error) {
	if sink == nil {
		return nil, fmt.Errorf("pipeline: consumer %q has no sink", cc.ID)
	}
	window, err := ring.New[*sample.Buffer](cc.BufferLength)
	if err != nil {
		return nil, fmt.Errorf("pipeline: consumer %q window: %w", cc.ID, err)
	}
	return &Consumer{
		ID:            cc.ID,
		Sink:          sink,
		smoothing:     cc.Smoothing,
		window:        window,
		hist:          hist,
		smoother:      smoother,
		rangeWarnings: applog.NewThrottle(time.Second),
		sendWarnings:  applog.NewThrottle(5 * time.Second),
	}, nil
}

// Smoothing returns the active smoothing factor.
func (c *Consumer) Smoothing() float64 { return c.smoothing }

// BufferLength returns the size of the smoothing window.
func (c *Consumer) BufferLength() int { return c.window.Size() }

// Frames returns how many frames were sent.
func (c *Consumer) Frames() uint64 { return c.frames }

func (c *Consumer) configure(cc config.ConsumerConfig) error {
	c.smoothing = cc.Smoothing
	if err := c.window.Resize(cc.BufferLength); err != nil {
		return err
	}
	if cc.BufferLength > 1 {
		c.prev = nil
	}
	return nil
}

// render reads the history one delay behind ts, so the audio frame on
// screen lines up with the frame being interpolated, smooths it and sends
// the result.
func (c *Consumer) render(ts float64) {
	current := c.hist.Frame(ts - c.hist.Delay())
	if current == nil {
		return
	}
	c.window.Push(current)

	// A one-frame window interpolates between the previous history read
	// and this one.
	var res smooth.Result
	if c.window.Size() == 1 {
		res = c.smoother.Interpolate(c.prev, current, c.smoothing)
		c.prev = current
	} else {
		res = c.smoother.Reduce(c.window.Items(), c.smoothing)
	}
	if res.Data == nil {
		return
	}

	values := res.Data.Raw()
	c.clamp(values, res.Peak)

	f, err := transport.NewFrame(c.ID, ts, res.Data.Channels(), res.Peak, values)
	if err != nil {
		c.sendWarnings.Warnf("Consumer %s: %v", c.ID, err)
		return
	}
	if err := c.Sink.Send(f); err != nil {
		c.sendWarnings.Warnf("Consumer %s: send failed: %v", c.ID, err)
		return
	}
	c.frames++
}

// clamp forces values into [0, 1], warning when one exceeded the reported
// peak or 1.
func (c *Consumer) clamp(values []float64, peak float64) {
	const epsilon = 1e-9
	for i, v := range values {
		if v > 1+epsilon || v > peak+epsilon {
			c.rangeWarnings.Warnf("Consumer %s: value %.4f at %d exceeds peak %.4f", c.ID, v, i, peak)
		}
		values[i] = min(1, max(0, v))
	}
}
