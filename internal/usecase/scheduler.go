package usecase

import (
	"context"
	"log/slog"
	"time"

	"ArxivDigest/internal/ports"
)

// DayRunner executes the digest job for one day.
type DayRunner interface {
	ProcessDay(ctx context.Context, day time.Time) (RunReport, error)
}

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline DayRunner
	location *time.Location
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs. Trigger times
// are converted to location before they become the run date.
func NewScheduler(driver ports.Scheduler, pipeline DayRunner, location *time.Location, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{driver: driver, pipeline: pipeline, location: location, logger: logger}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		s.runOnce(ctx, trigger)
	})
}

func (s *Scheduler) runOnce(ctx context.Context, trigger time.Time) {
	day := trigger.In(s.location)
	if _, err := s.pipeline.ProcessDay(ctx, day); err != nil {
		s.logger.Error("scheduled run failed", "date", day.Format(time.DateOnly), "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
