// Package scheduler runs recurring jobs at local-time boundaries. Jobs fire
// at midnight (daily) or Monday midnight (weekly) in the configured
// timezone and reschedule themselves after every run, so drift and DST
// shifts are absorbed by recomputing the next boundary each time.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobFunc is a recurring job body. Errors are logged, never fatal.
type JobFunc func(ctx context.Context) error

// Scheduler owns the job goroutines.
type Scheduler struct {
	location *time.Location
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New builds a scheduler for the given timezone.
func New(location *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{location: location, logger: logger}
}

// NextMidnight returns the first local midnight strictly after now.
func NextMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return next.AddDate(0, 0, 1)
}

// NextMondayMidnight returns the first Monday 00:00 local strictly after now.
func NextMondayMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	days := (int(time.Monday) - int(next.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return next.AddDate(0, 0, days)
}

// Daily schedules fn at every local midnight until ctx is canceled.
func (s *Scheduler) Daily(ctx context.Context, name string, fn JobFunc) {
	s.schedule(ctx, name, fn, func(now time.Time) time.Time {
		return NextMidnight(now, s.location)
	})
}

// Weekly schedules fn at every Monday midnight until ctx is canceled.
func (s *Scheduler) Weekly(ctx context.Context, name string, fn JobFunc) {
	s.schedule(ctx, name, fn, func(now time.Time) time.Time {
		return NextMondayMidnight(now, s.location)
	})
}

func (s *Scheduler) schedule(ctx context.Context, name string, fn JobFunc, next func(time.Time) time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			target := next(time.Now())
			delay := time.Until(target)
			if delay < time.Second {
				delay = time.Second
			}
			s.logger.Info("job scheduled", "name", name, "at", target, "in", delay)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.logger.Info("job stopped", "name", name)
				return
			case <-timer.C:
			}

			s.logger.Info("job start", "name", name)
			if err := fn(ctx); err != nil {
				s.logger.Error("job error", "name", name, "error", err)
			}
			s.logger.Info("job finish", "name", name)
		}
	}()
}

// Wait blocks until all job goroutines have observed cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
