package service

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pruner deletes journal rows older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Sweeper evicts in-memory state that outlived its expiry.
type Sweeper interface {
	SweepExpired(now time.Time) int
}

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// Retention is how long journal rows are kept. Default: 30 days.
	Retention time.Duration

	// CleanupInterval is how often the cleanup runs. Default: 1 hour.
	CleanupInterval time.Duration

	// InitialDelay postpones the first run after Start. Default: 1 minute.
	InitialDelay time.Duration

	// Sweeper, if set, runs on every tick before the prune.
	Sweeper Sweeper
}

// CleanupScheduler periodically prunes the activity journal and sweeps
// expired in-memory state on a single background goroutine. Stop cancels an
// in-flight prune and waits for it. A nil pruner only sweeps.
type CleanupScheduler struct {
	pruner Pruner
	config CleanupConfig

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	started bool
}

// NewCleanupScheduler creates a new cleanup scheduler.
func NewCleanupScheduler(pruner Pruner, config CleanupConfig) *CleanupScheduler {
	if config.Retention <= 0 {
		config.Retention = 30 * 24 * time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Hour
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupScheduler{
		pruner: pruner,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start launches the scheduler. Calling it again is a no-op.
func (s *CleanupScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	log.Printf("[CleanupScheduler] Started - Interval: %v, Retention: %v, First run in: %v",
		s.config.CleanupInterval, s.config.Retention, s.config.InitialDelay)
	go s.loop()
}

func (s *CleanupScheduler) loop() {
	defer close(s.done)

	wait := time.NewTimer(s.config.InitialDelay)
	defer wait.Stop()

	select {
	case <-wait.C:
		s.runCleanup()
	case <-s.ctx.Done():
		return
	}

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCleanup()
		case <-s.ctx.Done():
			log.Printf("[CleanupScheduler] Stopped")
			return
		}
	}
}

func (s *CleanupScheduler) runCleanup() {
	if s.config.Sweeper != nil {
		s.config.Sweeper.SweepExpired(time.Now())
	}
	if s.pruner == nil {
		return
	}

	deleted, err := s.RunNow()
	if err != nil {
		if s.ctx.Err() == nil {
			log.Printf("[CleanupScheduler] Error during cleanup: %v", err)
		}
		return
	}
	if deleted > 0 {
		log.Printf("[CleanupScheduler] Pruned %d activity rows older than %v", deleted, s.config.Retention)
	}
}

// Stop cancels the scheduler and waits for the loop to exit.
func (s *CleanupScheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// RunNow prunes once, outside the schedule.
func (s *CleanupScheduler) RunNow() (int64, error) {
	if s.pruner == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	return s.pruner.Prune(ctx, s.config.Retention)
}
