// Package scheduler runs periodic housekeeping jobs on a cron.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		logger: logger,
	}
}

// Every registers job to run once per interval. Intervals are truncated to
// whole seconds; anything shorter than a second runs every second.
func (s *Scheduler) Every(name string, interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval for %s must be positive", name)
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Scheduled job panicked", zap.String("job", name), zap.Any("panic", r))
			}
		}()
		job()
	})
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweeper is implemented by session registries that hold expired entries in
// process memory.
type Sweeper interface {
	Sweep() int
}

// ScheduleSessionSweep drops expired in-memory sessions every interval.
func (s *Scheduler) ScheduleSessionSweep(sw Sweeper, interval time.Duration) error {
	_, err := s.Every("session-sweep", interval, func() {
		if removed := sw.Sweep(); removed > 0 {
			s.logger.Info("Expired sessions removed", zap.Int("count", removed))
		}
	})
	return err
}
