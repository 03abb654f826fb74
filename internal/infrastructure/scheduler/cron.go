package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"MacroBrief/internal/ports"
)

// jobTimeout bounds a single pipeline run triggered by the scheduler.
const jobTimeout = 30 * time.Minute

// CronScheduler drives the daily and high-impact pipeline jobs from
// cron expressions.
type CronScheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// New builds a scheduler running in the given timezone.
func New(location *time.Location, logger *slog.Logger) *CronScheduler {
	return &CronScheduler{
		cron:   cron.New(cron.WithLocation(location)),
		logger: logger,
	}
}

// AddJob registers a named job under a cron expression. Each trigger
// runs with a bounded context so a hung run cannot pile up behind the
// next tick.
func (c *CronScheduler) AddJob(name, spec string, job func(ctx context.Context)) error {
	_, err := c.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		c.info("job started", "job", name)
		job(ctx)
		c.info("job finished", "job", name, "elapsed", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	c.info("job registered", "job", name, "spec", spec)
	return nil
}

func (c *CronScheduler) info(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// Start begins running scheduled jobs.
func (c *CronScheduler) Start() {
	c.cron.Start()
}

// Stop halts new triggers and waits for in-flight jobs to complete or
// for ctx to expire, so a shutdown never interrupts a dispatch between
// send and ledger record.
func (c *CronScheduler) Stop(ctx context.Context) error {
	done := c.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}
