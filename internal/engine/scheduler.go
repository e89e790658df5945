package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs a strategy cycle every interval while the engine is running.
type Scheduler struct {
	svc      Service
	interval time.Duration
	log      *zap.Logger
}

// NewScheduler creates a scheduler over svc.
func NewScheduler(svc Service, interval time.Duration, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{svc: svc, interval: interval, log: log.Named("scheduler")}
}

// Start launches the loop; it exits when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
}

// Tick runs one cycle if the engine is running. It reports whether a cycle ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.svc.IsRunning() {
		return false
	}
	// Shutdown stops new ticks; a started cycle runs to completion.
	if _, err := s.svc.RunStrategyCycle(context.WithoutCancel(ctx)); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.log.Debug("previous cycle still running; tick skipped")
		} else {
			s.log.Warn("strategy cycle failed", zap.Error(err))
		}
		return false
	}
	return true
}
