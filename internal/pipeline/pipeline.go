// SPDX-License-Identifier: MIT
//
// Package pipeline connects an audio source to the frame scheduler. Ticks
// cross from the audio thread through a bounded channel; everything else
// runs on the goroutine that drives the scheduler.
package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"spectra/internal/config"
	"spectra/internal/frame"
	"spectra/internal/history"
	applog "spectra/internal/log"
	"spectra/internal/preprocess"
	"spectra/internal/ring"
	"spectra/internal/sample"
	"spectra/internal/smooth"
	"spectra/internal/transport"
)

// DefaultIngestQueue is how many ticks may wait between two flushes. Audio
// callbacks arrive a few times per display frame, so this covers a stall of
// several hundred ms before ticks are dropped.
const DefaultIngestQueue = 64

// Clock returns the current time in ms. Audio ticks and render timestamps
// must come from the same clock.
type Clock func() float64

// Stats counts ticks since New.
type Stats struct {
	Ingested  uint64 // delivered by the audio source
	Dropped   uint64 // discarded because the queue was full
	Processed uint64 // pushed into the history
	Failed    uint64 // rejected by the preprocessor
}

type tick struct {
	ts  float64
	raw []float64
}

var processWarnings = applog.NewThrottle(time.Second)

// Pipeline owns the preprocessor, the peak window and the temporal history,
// and drives one render job per consumer on every flush.
type Pipeline struct {
	sched    *frame.Scheduler
	clock    Clock
	pre      *preprocess.Preprocessor
	peaks    *ring.Buffer[float64]
	hist     *history.History
	smoother *smooth.Smoother
	channels int

	ingest chan tick
	free   chan []float64

	// Touched only on the scheduler goroutine.
	processing bool
	consumers  []*Consumer

	pending atomic.Pointer[config.Config]
	unsub   []func()
	started bool

	ingested  atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// New builds a pipeline reading from source and flushing on sched. The
// scheduler's fps cap is set from cfg.
func New(cfg *config.Config, source preprocess.AudioSource, sched *frame.Scheduler, clock Clock) (*Pipeline, error) {
	if sched == nil || clock == nil {
		return nil, errors.New("pipeline: scheduler and clock are required")
	}
	opts := cfg.PreprocessOptions()
	pre, err := preprocess.New(opts, source)
	if err != nil {
		return nil, err
	}
	peaks, err := ring.New[float64](cfg.Processing.HistoryWindowSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: peak window: %w", err)
	}

	sched.SetFPS(cfg.Scheduler.FPS)
	return &Pipeline{
		sched:      sched,
		clock:      clock,
		pre:        pre,
		peaks:      peaks,
		hist:       history.New(cfg.HistoryOptions()...),
		smoother:   &smooth.Smoother{WeightBase: cfg.Smoothing.WeightBase},
		channels:   opts.Channels,
		ingest:     make(chan tick, DefaultIngestQueue),
		free:       make(chan []float64, DefaultIngestQueue),
		processing: cfg.Processing.Enabled,
	}, nil
}

// History exposes the temporal history. It must only be read from the
// scheduler goroutine.
func (p *Pipeline) History() *history.History { return p.hist }

// AddConsumer registers a consumer sending to sink. Call before Start.
func (p *Pipeline) AddConsumer(cc config.ConsumerConfig, sink transport.Transport) (*Consumer, error) {
	if p.started {
		return nil, errors.New("pipeline: consumers must be added before Start")
	}
	for _, c := range p.consumers {
		if c.ID == cc.ID {
			return nil, fmt.Errorf("pipeline: duplicate consumer %q", cc.ID)
		}
	}
	c, err := newConsumer(cc, sink, p.hist, p.smoother)
	if err != nil {
		return nil, err
	}
	p.consumers = append(p.consumers, c)
	applog.Infof("Pipeline: consumer %q -> %s (smoothing %.2f, buffer %d)", cc.ID, cc.Sink, cc.Smoothing, cc.BufferLength)
	return c, nil
}

// Consumers returns the registered consumers.
func (p *Pipeline) Consumers() []*Consumer { return p.consumers }

// Start subscribes to the scheduler, starts it and begins listening to the
// audio source.
func (p *Pipeline) Start() error {
	if p.started {
		return nil
	}
	p.unsub = append(p.unsub,
		p.sched.Subscribe(frame.BeforeRender, p.beforeRender),
		p.sched.Subscribe(frame.Render, p.render),
	)
	p.sched.Start()
	if err := p.pre.Start(p.enqueue); err != nil {
		p.Stop()
		return err
	}
	p.started = true
	return nil
}

// Stop detaches from the source and the scheduler. Queued ticks are discarded.
func (p *Pipeline) Stop() {
	p.pre.Stop()
	for _, unsub := range p.unsub {
		unsub()
	}
	p.unsub = nil
	for _, c := range p.consumers {
		p.sched.Cancel(c.ID)
	}
	p.started = false
}

// Reconfigure stages cfg; it takes effect at the start of the next flush.
func (p *Pipeline) Reconfigure(cfg *config.Config) {
	p.pending.Store(cfg)
}

// Stats returns the tick counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Ingested:  p.ingested.Load(),
		Dropped:   p.dropped.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

// enqueue runs on the audio thread. It copies raw into a recycled slice and
// never blocks.
func (p *Pipeline) enqueue(raw []float64) {
	p.ingested.Add(1)

	var buf []float64
	select {
	case buf = <-p.free:
	default:
	}
	if cap(buf) < len(raw) {
		buf = make([]float64, len(raw))
	}
	buf = buf[:len(raw)]
	copy(buf, raw)

	select {
	case p.ingest <- tick{ts: p.clock(), raw: buf}:
	default:
		p.dropped.Add(1)
		p.recycle(buf)
	}
}

func (p *Pipeline) recycle(buf []float64) {
	select {
	case p.free <- buf:
	default:
	}
}

func (p *Pipeline) beforeRender(frame.Event) {
	if cfg := p.pending.Swap(nil); cfg != nil {
		p.apply(cfg)
	}
	for {
		select {
		case t := <-p.ingest:
			p.push(t)
			p.recycle(t.raw)
		default:
			return
		}
	}
}

// push processes one tick into the history.
func (p *Pipeline) push(t tick) {
	if !p.processing {
		silent, err := sample.Zero(len(t.raw)/p.channels, p.channels)
		if err != nil {
			p.failed.Add(1)
			return
		}
		p.hist.Push(t.ts, silent)
		p.processed.Add(1)
		return
	}

	res, err := p.pre.Process(t.raw, p.peaks.Items())
	if err != nil {
		p.failed.Add(1)
		processWarnings.Warnf("Pipeline: dropping tick: %v", err)
		return
	}
	p.peaks.Push(res.Peak)
	p.hist.Push(t.ts, res.Data)
	p.processed.Add(1)
}

func (p *Pipeline) render(frame.Event) {
	for _, c := range p.consumers {
		p.sched.Queue(c.ID, c.render)
	}
}

// apply installs a reloaded configuration. Fields that need new resources
// (audio input, sinks, history retention) only take effect on restart.
func (p *Pipeline) apply(cfg *config.Config) {
	if err := p.pre.SetOptions(cfg.PreprocessOptions()); err != nil {
		applog.Warnf("Pipeline: keeping previous processing options: %v", err)
	}
	if err := p.peaks.Resize(cfg.Processing.HistoryWindowSize); err != nil {
		applog.Warnf("Pipeline: keeping peak window of %d: %v", p.peaks.Size(), err)
	}
	p.processing = cfg.Processing.Enabled
	p.smoother.WeightBase = cfg.Smoothing.WeightBase
	p.sched.SetFPS(cfg.Scheduler.FPS)

	for _, c := range p.consumers {
		cc, ok := cfg.Consumer(c.ID)
		if !ok {
			applog.Warnf("Pipeline: consumer %q missing from reloaded config, keeping it until restart", c.ID)
			continue
		}
		if err := c.configure(cc); err != nil {
			applog.Warnf("Pipeline: consumer %q: %v", c.ID, err)
		}
	}
	for _, cc := range cfg.Consumers {
		if !p.hasConsumer(cc.ID) {
			applog.Warnf("Pipeline: new consumer %q takes effect after restart", cc.ID)
		}
	}
	applog.Infof("Pipeline: configuration applied (fps %.0f, processing %v)", cfg.Scheduler.FPS, cfg.Processing.Enabled)
}

func (p *Pipeline) hasConsumer(id string) bool {
	for _, c := range p.consumers {
		if c.ID == id {
			return true
		}
	}
	return false
}
