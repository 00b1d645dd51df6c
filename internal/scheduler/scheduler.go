// Package scheduler runs the ingestion pipeline on a cron schedule, once
// per configured search on every tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/model"
)

// Runner is the slice of the ingestion pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context, userID string, q model.Query) (model.IngestionStats, error)
}

// Scheduler wraps robfig/cron and triggers one ingestion cycle per tick.
type Scheduler struct {
	cron     *cron.Cron
	runner   Runner
	searches []config.SearchConfig
	spec     string
	logger   *slog.Logger
}

// New creates a Scheduler firing on the given cron spec. Overlapping ticks
// are skipped rather than queued: a slow cycle must never stack another
// behind it.
func New(runner Runner, searches []config.SearchConfig, spec string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		runner:   runner,
		searches: searches,
		spec:     spec,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler. One cycle runs
// immediately so a fresh deployment has data before the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runCycle(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "searches", len(s.searches))

	go s.runCycle(ctx)
	return nil
}

// Stop halts the cron loop and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runCycle ingests once for every configured search, sequentially. Per-user
// runs already fan out across sources internally.
func (s *Scheduler) runCycle(ctx context.Context) {
	for _, search := range s.searches {
		if ctx.Err() != nil {
			return
		}

		stats, err := s.runner.Run(ctx, search.UserID, model.Query{
			Skills:    search.Skills,
			Locations: search.Locations,
		})
		if err != nil {
			s.logger.Error("ingestion cycle failed", "user", search.UserID, "error", err)
			continue
		}
		s.logger.Info("ingestion cycle finished",
			"user", search.UserID,
			"new_jobs", stats.NewJobs,
			"failed_sources", len(stats.Failures),
		)
	}
}
