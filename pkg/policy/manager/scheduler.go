package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RefreshScheduler reloads policies on a cron schedule, picking up policy
// files replaced by a redeploy without a file watcher.
type RefreshScheduler struct {
	schedule string
	refresh  func(ctx context.Context) error
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewRefreshScheduler creates a scheduler that calls refresh on schedule, a
// standard 5-field cron expression. An empty schedule disables it.
func NewRefreshScheduler(schedule string, refresh func(ctx context.Context) error, logger *slog.Logger) *RefreshScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshScheduler{
		schedule: schedule,
		refresh:  refresh,
		cron:     cron.New(),
		logger:   logger.With("component", "policy.refresh"),
	}
}

// Start schedules the refresh job and returns immediately. The scheduler
// stops when ctx is cancelled.
//
// Common cron expressions:
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 * * * *"    - Hourly
//   - "0 3 * * *"    - Daily at 3 AM
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("refresh schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return errors.New("refresh scheduler already running")
	}
	if s.refresh == nil {
		return errors.New("refresh function is nil")
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runRefresh(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("refresh scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunNow performs one refresh immediately, outside the schedule.
func (s *RefreshScheduler) RunNow(ctx context.Context) error {
	if s.refresh == nil {
		return errors.New("refresh function is nil")
	}
	return s.refresh(ctx)
}

func (s *RefreshScheduler) runRefresh(ctx context.Context) {
	start := time.Now()
	s.logger.Debug("starting scheduled policy refresh")

	if err := s.refresh(ctx); err != nil {
		s.logger.Error("scheduled policy refresh failed", "error", err)
		return
	}

	s.logger.Info("scheduled policy refresh completed",
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop stops the scheduler and waits for a running refresh to complete.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("refresh scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is running.
func (s *RefreshScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled refresh time, or nil when idle.
func (s *RefreshScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
