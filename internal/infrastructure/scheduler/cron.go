package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ArxivDigest/internal/ports"
)

// CronScheduler fires the job on a standard five field cron expression
// evaluated in a fixed location.
type CronScheduler struct {
	expr     string
	location *time.Location
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewCronScheduler validates expr and returns a stopped scheduler.
func NewCronScheduler(expr string, location *time.Location, logger *slog.Logger) (*CronScheduler, error) {
	if _, err := cronParser.Parse(expr); err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CronScheduler{expr: expr, location: location, logger: logger}, nil
}

// Next reports the first activation strictly after t.
func (c *CronScheduler) Next(t time.Time) time.Time {
	schedule, err := cronParser.Parse(c.expr)
	if err != nil {
		return time.Time{}
	}
	return schedule.Next(t.In(c.location))
}

// Start registers job and begins ticking. Runs never overlap; a trigger that
// arrives while the previous run is still busy is skipped. Starting twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(c.location),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := runner.AddFunc(c.expr, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(c.location))
	}); err != nil {
		return fmt.Errorf("register cron job: %w", err)
	}

	runner.Start()
	c.cron = runner
	c.logger.Info("scheduler started", "cron", c.expr, "timezone", c.location.String(),
		"next", c.Next(time.Now()).Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop halts the cron and waits for a running job to finish or ctx to expire.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}

	done := runner.Stop()
	select {
	case <-done.Done():
		c.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
