package manager

import (
	"context"
	"errors"
	"testing"
)

func TestRefreshScheduler_EmptySchedule(t *testing.T) {
	s := NewRefreshScheduler("", func(context.Context) error { return nil }, nil)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	if s.IsRunning() {
		t.Error("scheduler running without a schedule")
	}
	if s.NextRun() != nil {
		t.Error("NextRun() != nil without a schedule")
	}
}

func TestRefreshScheduler_InvalidSchedule(t *testing.T) {
	s := NewRefreshScheduler("every morning", func(context.Context) error { return nil }, nil)

	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() error = nil, want invalid schedule error")
	}
	if s.IsRunning() {
		t.Error("scheduler running after a failed start")
	}
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewRefreshScheduler("*/5 * * * *", func(context.Context) error { return nil }, nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if s.NextRun() == nil {
		t.Error("NextRun() = nil while running")
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start() error = nil, want error")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	s.Stop()
}

func TestRefreshScheduler_RunNow(t *testing.T) {
	wantErr := errors.New("reload failed")
	calls := 0
	s := NewRefreshScheduler("", func(context.Context) error {
		calls++
		return wantErr
	}, nil)

	if err := s.RunNow(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("RunNow() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("refresh called %d times, want 1", calls)
	}

	// A failing scheduled run is logged, not propagated.
	s.runRefresh(context.Background())
	if calls != 2 {
		t.Errorf("refresh called %d times, want 2", calls)
	}
}
