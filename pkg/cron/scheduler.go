// Package cron runs the scheduled billing and engagement jobs.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"muscleai_backend/pkg/metrics"
)

// Job is one scheduled unit of work. It returns an error only for failures
// worth counting; per-row problems are logged by the job itself.
type Job func(ctx context.Context) error

type Scheduler struct {
	c   *cron.Cron
	log *slog.Logger
}

// NewScheduler runs jobs in UTC and never overlaps two runs of the same job.
func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		log: log,
	}
}

func (s *Scheduler) Add(name, spec string, timeout time.Duration, job Job) error {
	_, err := s.c.AddFunc(spec, func() { s.run(name, timeout, job) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.log.Info("cron job scheduled", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := job(ctx); err != nil {
		metrics.CronRuns.WithLabelValues(name, "error").Inc()
		s.log.Error("cron job failed", "job", name, "duration", time.Since(start), "error", err)
		return
	}
	metrics.CronRuns.WithLabelValues(name, "ok").Inc()
	s.log.Info("cron job finished", "job", name, "duration", time.Since(start))
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("cron jobs still running at shutdown")
	}
}
