package usecase

import (
	"context"
	"fmt"
	"time"

	"MacroBrief/internal/ports"
)

// Scheduler wires the cron driver with the pipeline's two periodic
// jobs: the daily briefing and the high-impact release poll.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
}

// NewScheduler returns a helper to start/stop the recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline}
}

// Start registers both jobs. dailyAt is "HH:MM"; pollMinutes is the
// high-impact check interval.
func (s *Scheduler) Start(dailyAt string, pollMinutes int) error {
	t, err := time.Parse("15:04", dailyAt)
	if err != nil {
		return fmt.Errorf("invalid daily briefing time %q: %w", dailyAt, err)
	}

	dailySpec := fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
	if err := s.driver.AddJob("daily-briefing", dailySpec, func(ctx context.Context) {
		_, _, _ = s.pipeline.RunDaily(ctx)
	}); err != nil {
		return err
	}

	pollSpec := fmt.Sprintf("*/%d * * * *", pollMinutes)
	if err := s.driver.AddJob("high-impact-poll", pollSpec, func(ctx context.Context) {
		_, _ = s.pipeline.CheckHighImpact(ctx)
	}); err != nil {
		return err
	}

	s.driver.Start()
	return nil
}

// Stop gracefully tears down the underlying scheduler, letting in-flight
// dispatch attempts complete within their timeout.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.driver.Stop(ctx)
}
