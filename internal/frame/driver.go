// SPDX-License-Identifier: MIT
package frame

import (
	"context"
	"sync"
	"time"

	applog "spectra/internal/log"
)

// DefaultRefreshInterval approximates a 60Hz display.
const DefaultRefreshInterval = time.Second / 60

// Driver stands in for the display: a single goroutine that calls Tick on a
// Scheduler at a fixed refresh rate. Every callback of the scheduler runs on
// that goroutine.
type Driver struct {
	sched    *Scheduler
	interval time.Duration
	epoch    time.Time

	mu       sync.Mutex
	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDriver returns a Driver for sched. A non-positive interval falls back to
// DefaultRefreshInterval.
func NewDriver(sched *Scheduler, interval time.Duration) *Driver {
	if interval <= 0 {
		applog.Warnf("Driver: invalid refresh interval %s, defaulting to %s", interval, DefaultRefreshInterval)
		interval = DefaultRefreshInterval
	}
	return &Driver{sched: sched, interval: interval, epoch: time.Now()}
}

// Now returns the driver clock in ms. It is monotonic and shared with audio
// ingestion so tick and frame timestamps are comparable.
func (d *Driver) Now() float64 {
	return float64(time.Since(d.epoch)) / float64(time.Millisecond)
}

// Start launches the refresh goroutine. No-op when already running.
func (d *Driver) Start() {
	d.mu.Lock()
	if d.ticker != nil {
		d.mu.Unlock()
		applog.Warnf("Driver: Start called but already running.")
		return
	}
	d.ticker = time.NewTicker(d.interval)
	d.doneChan = make(chan struct{})
	d.stopOnce = sync.Once{}
	ticker, done := d.ticker, d.doneChan
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		applog.Infof("Driver: refresh loop started (interval %s)", d.interval)
		d.loop(ticker.C, done)
		applog.Infof("Driver: refresh loop stopped")
	}()
}

// Stop ends the refresh goroutine and waits for the flush in progress to finish.
func (d *Driver) Stop() {
	d.mu.Lock()
	if d.ticker == nil {
		d.mu.Unlock()
		return
	}
	ticker, done := d.ticker, d.doneChan
	d.mu.Unlock()

	d.stopOnce.Do(func() {
		ticker.Stop()
		close(done)
	})
	d.wg.Wait()

	d.mu.Lock()
	d.ticker = nil
	d.doneChan = nil
	d.mu.Unlock()
}

// Run drives the scheduler on the calling goroutine until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	d.loop(ticker.C, ctx.Done())
	return ctx.Err()
}

func (d *Driver) loop(tick <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-tick:
			d.sched.Tick(d.Now())
		case <-done:
			return
		}
	}
}
