package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 1
}

func TestEveryRejectsNonPositiveInterval(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := s.Every("job", d, func() {}); err == nil {
			t.Errorf("Every(%v) error = nil, want error", d)
		}
	}
}

func TestScheduleSessionSweepRuns(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	sw := &countingSweeper{}
	if err := s.ScheduleSessionSweep(sw, time.Second); err != nil {
		t.Fatalf("ScheduleSessionSweep() error = %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for sw.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if sw.calls.Load() == 0 {
		t.Fatal("sweep never ran")
	}
}

func TestPanickingJobDoesNotStopScheduler(t *testing.T) {
	s := New(time.UTC, zap.NewNop())
	var runs atomic.Int32
	if _, err := s.Every("boom", time.Second, func() {
		runs.Add(1)
		panic("boom")
	}); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatalf("job ran %d times, want at least 2", runs.Load())
	}
}
