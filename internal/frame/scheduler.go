// SPDX-License-Identifier: MIT
//
// Package frame coalesces per-consumer render work onto display refreshes.
//
// The host calls Tick once per refresh. A tick that passes the fps gate
// flushes: BeforeRender subscribers, Render subscribers, every queued job,
// then AfterRender subscribers. A consumer has at most one job pending, so
// queueing twice before a flush replaces the first job.
package frame

import (
	"fmt"
	"math"
	"sync"

	applog "spectra/internal/log"
)

// Stage is a lifecycle point within a flush.
type Stage int

const (
	BeforeRender Stage = iota
	Render
	AfterRender
	stageCount
)

func (s Stage) String() string {
	switch s {
	case BeforeRender:
		return "before-render"
	case Render:
		return "render"
	case AfterRender:
		return "after-render"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Event is delivered to stage subscribers.
type Event struct {
	Timestamp float64 // ms, as passed to Tick
}

// Job is a queued render callback.
type Job func(ts float64)

// Stats counts scheduler activity since New.
type Stats struct {
	Flushes uint64
	Skipped uint64 // ticks rejected by the fps gate
	JobsRun uint64
}

type subscriber struct {
	id int
	fn func(Event)
}

// Scheduler is the frame job queue. Methods may be called from any
// goroutine, but callbacks always run on the goroutine that calls Tick and
// never under the scheduler's lock, so they may Queue, Cancel or Subscribe.
type Scheduler struct {
	mu       sync.Mutex
	running  bool
	interval float64 // ms, 0 = uncapped
	last     float64
	flushed  bool // last is valid

	order []string
	jobs  map[string]Job

	subs   [stageCount][]subscriber
	nextID int

	stats Stats
}

// New returns a stopped, uncapped scheduler.
func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]Job)}
}

// SetFPS caps flushes to fps per second. fps <= 0 removes the cap.
func (s *Scheduler) SetFPS(fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		s.interval = 0
		return
	}
	s.interval = 1000 / fps
}

// FPS returns the configured cap, 0 when uncapped.
func (s *Scheduler) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval == 0 {
		return 0
	}
	return 1000 / s.interval
}

// Start begins accepting jobs. No-op when already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.flushed = false
	applog.Debugf("Scheduler: started")
}

// Stop drops every pending job and stops flushing. No-op when stopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.order = nil
	clear(s.jobs)
	applog.Debugf("Scheduler: stopped")
}

// Running reports whether the scheduler accepts jobs.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Queue schedules job for the next flush under id, replacing any job already
// pending for id and moving id to the tail. Dropped while stopped.
func (s *Scheduler) Queue(id string, job Job) {
	if job == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if _, ok := s.jobs[id]; ok {
		s.removeLocked(id)
	}
	s.order = append(s.order, id)
	s.jobs[id] = job
}

// Cancel removes the job pending for id, if any.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if _, ok := s.jobs[id]; ok {
		s.removeLocked(id)
		delete(s.jobs, id)
	}
}

func (s *Scheduler) removeLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Pending returns the number of queued jobs.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe registers fn for stage and returns a func that removes it.
func (s *Scheduler) Subscribe(stage Stage, fn func(Event)) (unsubscribe func()) {
	if stage < 0 || stage >= stageCount {
		panic(fmt.Sprintf("frame: unknown stage %d", int(stage)))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[stage] = append(s.subs[stage], subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			subs := s.subs[stage]
			for i, sub := range subs {
				if sub.id == id {
					s.subs[stage] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Tick is called by the host once per display refresh with a monotonic
// timestamp in ms. It reports whether a flush ran.
func (s *Scheduler) Tick(ts float64) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	if s.interval > 0 && s.flushed {
		elapsed := ts - s.last
		if elapsed < s.interval {
			s.stats.Skipped++
			s.mu.Unlock()
			return false
		}
		// Carry the remainder so the average rate stays at fps.
		s.last = ts - math.Mod(elapsed, s.interval)
	} else {
		s.last = ts
		s.flushed = true
	}
	s.stats.Flushes++
	s.mu.Unlock()

	s.flush(ts)
	return true
}

func (s *Scheduler) flush(ts float64) {
	ev := Event{Timestamp: ts}
	s.emit(BeforeRender, ev)
	s.emit(Render, ev)

	s.mu.Lock()
	order, jobs := s.order, s.jobs
	s.order = nil
	s.jobs = make(map[string]Job, len(jobs))
	s.mu.Unlock()

	for _, id := range order {
		jobs[id](ts)
	}

	s.mu.Lock()
	s.stats.JobsRun += uint64(len(order))
	s.mu.Unlock()

	s.emit(AfterRender, ev)
}

func (s *Scheduler) emit(stage Stage, ev Event) {
	s.mu.Lock()
	subs := s.subs[stage]
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(ev)
	}
}
