// Package service runs inbound web requests on a fixed cadence, one at a
// time, from a single recurring task.
package service

import (
	"context"
	"sync"
	"time"

	"settings-portal/logger"
)

var log = logger.Get()

// DefaultInterval is how often pending requests are serviced.
const DefaultInterval = 15 * time.Second

// Scheduler calls step every interval while active.
type Scheduler struct {
	interval time.Duration
	step     func()

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}

	stepMu sync.Mutex // serialises steps
}

// NewScheduler creates an inactive scheduler. A non-positive interval falls
// back to DefaultInterval.
func NewScheduler(interval time.Duration, step func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval, step: step}
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start activates the scheduler. Calling Start on an active scheduler does
// nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.active = true
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	log.WithField("interval", s.interval).Info("scheduler started")
}

// Stop deactivates the scheduler and waits for a running step to finish,
// including one started by a direct Tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.stepMu.Lock()
	s.stepMu.Unlock()
	log.Info("scheduler stopped")
}

// Active reports whether the scheduler is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Tick runs one step if the scheduler is active and reports whether it did.
func (s *Scheduler) Tick() bool {
	if !s.Active() {
		return false
	}
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	s.step()
	return true
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			// A restart may already own the flag.
			if s.done == done {
				s.active = false
			}
			s.mu.Unlock()
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
