// SPDX-License-Identifier: MIT
package frame

import (
	"context"
	"slices"
	"sync/atomic"
	"testing"
	"time"
)

func running() *Scheduler {
	s := New()
	s.Start()
	return s
}

func TestFPSGateAt30(t *testing.T) {
	s := running()
	s.SetFPS(30)

	if !s.Tick(1000) {
		t.Fatal("first tick must flush")
	}
	if s.Tick(1010) {
		t.Error("tick 10ms later flushed with a 33.3ms minimum spacing")
	}
	if !s.Tick(1034) {
		t.Error("tick 34ms after the flush should flush")
	}
	if st := s.Stats(); st.Flushes != 2 || st.Skipped != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFPSGateCarriesRemainder(t *testing.T) {
	s := running()
	s.SetFPS(50) // 20ms

	// A 60Hz display ticking every 16.67ms. Without the carry every other
	// tick is skipped (30fps); with it the flush rate approaches 50fps.
	flushes := 0
	for i := range 600 {
		if s.Tick(float64(i) * 1000 / 60) {
			flushes++
		}
	}
	// 600 ticks are 10 seconds.
	if flushes < 480 || flushes > 510 {
		t.Errorf("flushes over 10s = %d, want about 500", flushes)
	}
}

func TestUncapped(t *testing.T) {
	s := running()
	for i := range 5 {
		if !s.Tick(float64(i)) {
			t.Fatalf("uncapped tick %d skipped", i)
		}
	}
}

func TestFlushOrder(t *testing.T) {
	s := running()
	var got []string
	s.Subscribe(AfterRender, func(Event) { got = append(got, "after") })
	s.Subscribe(Render, func(Event) { got = append(got, "render") })
	s.Subscribe(BeforeRender, func(Event) { got = append(got, "before") })
	s.Queue("a", func(float64) { got = append(got, "job-a") })
	s.Queue("b", func(float64) { got = append(got, "job-b") })

	s.Tick(0)
	want := []string{"before", "render", "job-a", "job-b", "after"}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestRenderSubscribersMayQueue(t *testing.T) {
	s := running()
	ran := false
	s.Subscribe(Render, func(Event) {
		s.Queue("consumer", func(float64) { ran = true })
	})
	s.Tick(0)
	if !ran {
		t.Error("job queued during Render did not run in the same flush")
	}
}

func TestQueueCoalescesAndMovesToTail(t *testing.T) {
	s := running()
	var got []string
	s.Queue("a", func(float64) { got = append(got, "a1") })
	s.Queue("b", func(float64) { got = append(got, "b") })
	s.Queue("a", func(float64) { got = append(got, "a2") })

	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}
	s.Tick(0)
	if want := []string{"b", "a2"}; !slices.Equal(got, want) {
		t.Errorf("ran %v, want %v", got, want)
	}
	if st := s.Stats(); st.JobsRun != 2 {
		t.Errorf("JobsRun = %d, want 2", st.JobsRun)
	}
}

func TestJobsQueuedDuringDrainWait(t *testing.T) {
	s := running()
	count := 0
	var job Job
	job = func(float64) {
		count++
		s.Queue("self", job)
	}
	s.Queue("self", job)

	s.Tick(0)
	if count != 1 {
		t.Fatalf("job ran %d times in one flush, want 1", count)
	}
	if s.Pending() != 1 {
		t.Fatalf("re-queued job not pending")
	}
	s.Tick(1)
	if count != 2 {
		t.Errorf("job ran %d times after two flushes, want 2", count)
	}
}

func TestCancel(t *testing.T) {
	s := running()
	ran := false
	s.Queue("a", func(float64) { ran = true })
	s.Cancel("a")
	s.Cancel("missing")
	s.Tick(0)
	if ran {
		t.Error("cancelled job ran")
	}
}

func TestStoppedIsNoop(t *testing.T) {
	s := New()
	ran := false
	s.Queue("a", func(float64) { ran = true })
	s.Cancel("a")
	if s.Pending() != 0 {
		t.Fatal("queue accepted a job while stopped")
	}
	if s.Tick(0) {
		t.Error("stopped scheduler flushed")
	}

	s.Start()
	s.Start()
	s.Queue("a", func(float64) { ran = true })
	s.Stop()
	s.Stop()
	s.Start()
	s.Tick(0)
	if ran {
		t.Error("job queued before Stop survived a restart")
	}
}

func TestUnsubscribe(t *testing.T) {
	s := running()
	n := 0
	unsub := s.Subscribe(Render, func(Event) { n++ })
	s.Tick(0)
	unsub()
	unsub()
	s.Tick(1)
	if n != 1 {
		t.Errorf("subscriber called %d times, want 1", n)
	}
}

func TestEventTimestamp(t *testing.T) {
	s := running()
	var got float64
	s.Subscribe(BeforeRender, func(ev Event) { got = ev.Timestamp })
	var jobTS float64
	s.Queue("a", func(ts float64) { jobTS = ts })
	s.Tick(123.5)
	if got != 123.5 || jobTS != 123.5 {
		t.Errorf("event ts = %v, job ts = %v, want 123.5", got, jobTS)
	}
}

func TestDriverRun(t *testing.T) {
	s := running()
	var flushes atomic.Int32
	s.Subscribe(AfterRender, func(Event) { flushes.Add(1) })

	d := NewDriver(s, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Run(ctx); err != context.DeadlineExceeded {
		t.Errorf("Run = %v, want DeadlineExceeded", err)
	}
	if flushes.Load() == 0 {
		t.Error("driver never flushed")
	}
}

func TestDriverStartStop(t *testing.T) {
	s := running()
	var flushes atomic.Int32
	s.Subscribe(Render, func(Event) { flushes.Add(1) })

	d := NewDriver(s, time.Millisecond)
	d.Start()
	d.Start()
	deadline := time.Now().Add(2 * time.Second)
	for flushes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	d.Stop()
	d.Stop()

	n := flushes.Load()
	if n == 0 {
		t.Fatal("driver never flushed")
	}
	time.Sleep(10 * time.Millisecond)
	if flushes.Load() != n {
		t.Error("driver kept ticking after Stop")
	}
}
