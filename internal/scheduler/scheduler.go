package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler runs a task on a fixed interval in a background goroutine. The
// outbox processor is its only task in this service, but it is task-agnostic.
type Scheduler struct {
	logger    *zap.Logger
	interval  time.Duration
	taskFunc  func(context.Context) error
	stopCh    chan struct{}
	doneCh    chan struct{}
	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *zap.Logger, interval time.Duration, taskFunc func(context.Context) error) *Scheduler {
	return &Scheduler{
		logger:   logger,
		interval: interval,
		taskFunc: taskFunc,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the scheduler. The task runs once immediately, then on every
// interval tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerAlreadyRunning
	}

	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx, s.stopCh, s.doneCh)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the scheduler and waits for the loop to exit. A task already in
// flight runs to completion; there is no mid-batch cancellation.
//
// isRunning flips to false under the same lock that closes stopCh, so of two
// concurrent Stop calls exactly one closes the channel and the other gets
// ErrSchedulerNotRunning.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done

	s.logger.Info("Scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		s.mu.Lock()
		// A restart swaps the channels, so only the current generation
		// may reset the flag.
		if s.doneCh == doneCh {
			s.isRunning = false
		}
		s.mu.Unlock()
	}()

	s.executeTask(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled")
			return
		case <-stopCh:
			s.logger.Info("Scheduler stop signal received")
			return
		case <-ticker.C:
			s.executeTask(ctx)
		}
	}
}

// executeTask runs the task with a deadline one tick out, so a slow run
// cannot pile up behind the next one.
func (s *Scheduler) executeTask(ctx context.Context) {
	taskCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if err := s.taskFunc(taskCtx); err != nil {
		s.logger.Error("Scheduled task failed", zap.Error(err))
	}
}
