package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"proxy-checker/internal/domain"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

type Scheduler interface {
	Start(context.Context) error
	Stop() error
	IsHealthy() bool
}

type defaultScheduler struct {
	interval time.Duration
	task     Task
	logger   *zap.Logger
	metrics  domain.MetricsCollector

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	started  bool
	stopping bool
}

// NewScheduler runs task once on Start and then every interval. A zero
// interval yields a scheduler that never runs.
func NewScheduler(
	interval time.Duration,
	task Task,
	metrics domain.MetricsCollector,
	logger *zap.Logger,
) Scheduler {
	return &defaultScheduler{
		interval: interval,
		task:     task,
		logger:   logger.With(zap.String("component", "scheduler")),
		metrics:  metrics,
	}
}

func (s *defaultScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if s.interval <= 0 || s.task == nil {
		s.logger.Debug("scheduler disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.stopping = false

	go s.run(runCtx, s.done)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	return nil
}

func (s *defaultScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTask(ctx)

	for {
		select {
		case <-ticker.C:
			s.runTask(ctx)
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped", zap.Error(ctx.Err()))
			return
		}
	}
}

func (s *defaultScheduler) runTask(ctx context.Context) {
	start := time.Now()
	err := s.task(ctx)
	s.metrics.RecordSchedulerRun(err)

	if err != nil {
		s.logger.Error("scheduled task failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled task completed", zap.Duration("elapsed", time.Since(start)))
}

func (s *defaultScheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.stopping = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("scheduler shutdown timed out")
	}
}

func (s *defaultScheduler) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopping
}
