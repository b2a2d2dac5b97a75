package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestNewCronSchedulerRejectsBadExpression(t *testing.T) {
	t.Parallel()

	if _, err := NewCronScheduler("every morning", time.UTC, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCronSchedulerNextUsesLocation(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	s, err := NewCronScheduler("0 6 * * 1-5", ny, nil)
	if err != nil {
		t.Fatalf("NewCronScheduler: %v", err)
	}

	// Friday 2024-05-17 12:00 UTC is 08:00 in New York; next weekday run is Monday 06:00.
	next := s.Next(time.Date(2024, time.May, 17, 12, 0, 0, 0, time.UTC))
	want := time.Date(2024, time.May, 20, 6, 0, 0, 0, ny)
	if !next.Equal(want) {
		t.Fatalf("unexpected next run: %s, want %s", next, want)
	}
}

func TestCronSchedulerStartStop(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("* * * * *", time.UTC, nil)
	if err != nil {
		t.Fatalf("NewCronScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := func(time.Time) {}
	if err := s.Start(ctx, job); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx, job); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestCronSchedulerNilJob(t *testing.T) {
	t.Parallel()

	s, err := NewCronScheduler("0 6 * * *", nil, nil)
	if err != nil {
		t.Fatalf("NewCronScheduler: %v", err)
	}
	if err := s.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start with nil job: %v", err)
	}
	if s.cron != nil {
		t.Fatal("nil job must not start the cron")
	}
}
