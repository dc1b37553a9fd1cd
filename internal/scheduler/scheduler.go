// Package scheduler runs named periodic jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"traderelay/internal/logger"
)

type job struct {
	name string
	run  func(context.Context)
}

// Scheduler owns a set of background jobs and stops them together.
type Scheduler struct {
	mu   sync.Mutex
	jobs []job
	wg   sync.WaitGroup
}

// New returns an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Every registers fn to run each interval until the scheduler stops.
func (s *Scheduler) Every(name string, interval time.Duration, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, run: func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}})
}

// DailyAt registers fn to run once a day at the given wall-clock hour and
// minute. With skipWeekends the job does not fire on Saturday or Sunday.
func (s *Scheduler) DailyAt(name string, hour, minute int, skipWeekends bool, fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, run: func(ctx context.Context) {
		for {
			next := nextRun(time.Now(), hour, minute, skipWeekends)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
				fn(ctx)
			}
		}
	}})
}

// Start launches every registered job.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		j := j
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			logger.Debugf("scheduler: job %s started", j.name)
			j.run(ctx)
			logger.Debugf("scheduler: job %s stopped", j.name)
		}()
	}
}

// Wait blocks until all jobs have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// nextRun finds the next instant at hour:minute after now, stepping over
// weekend days when asked.
func nextRun(now time.Time, hour, minute int, skipWeekends bool) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for skipWeekends && (next.Weekday() == time.Saturday || next.Weekday() == time.Sunday) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
