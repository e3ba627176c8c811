package gossip

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// StartTaskName names the cold-start broadcast task of a node.
	StartTaskName = "gossip_start"

	DefaultInterval = 5 * time.Second
)

// FireFunc is the body of a scheduled task. Returning false cancels the
// task; it will not fire again.
type FireFunc func(ctx context.Context) bool

type SchedulerConfig struct {
	Interval time.Duration // between firings
	Delay    time.Duration // before the first firing
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{Interval: DefaultInterval}
}

// Scheduler runs a named recurring task until it is cancelled, either by
// the task itself or by the owner.
type Scheduler struct {
	name string
	cfg  SchedulerConfig
	fire FireFunc
	log  *zap.Logger

	mu        sync.Mutex
	cancelled bool
	started   bool
	fires     int
	cancelCh  chan struct{}
	done      chan struct{}
}

func NewScheduler(name string, cfg SchedulerConfig, fire FireFunc, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		cfg:      cfg,
		fire:     fire,
		log:      logger.With(zap.String("task", name)),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Name() string { return s.name }

// Start arms the timer. The first firing happens after Delay, later ones
// every Interval. Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.cfg.Delay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.cancelCh:
			return
		case <-timer.C:
		}
		if !s.Tick(ctx) {
			return
		}
		timer.Reset(s.cfg.Interval)
	}
}

// Tick fires the task once, unless it is already cancelled, and reports
// whether the task is still armed afterwards.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if s.Cancelled() {
		return false
	}
	keep := s.fire(ctx)

	s.mu.Lock()
	s.fires++
	s.mu.Unlock()

	if !keep {
		s.log.Debug("task cancelled itself")
		s.Cancel()
		return false
	}
	return true
}

// Cancel disarms the task permanently. Safe to call repeatedly and from
// inside the task body.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	close(s.cancelCh)
}

// Stop cancels the task and waits for its goroutine to exit. In-flight
// sends of a firing are not interrupted.
func (s *Scheduler) Stop() {
	s.Cancel()
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *Scheduler) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Fires returns how many times the task body ran.
func (s *Scheduler) Fires() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fires
}
