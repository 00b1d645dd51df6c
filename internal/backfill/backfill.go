// Package backfill computes fingerprints for jobs persisted before
// fingerprinting existed. It walks rows with an empty fingerprint in
// batches, derives the fingerprint from the stored fields, and writes it
// back. Safe to interrupt and re-run: a filled row is never touched again.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/normalize"
)

// Store is the slice of the job store the backfill needs.
type Store interface {
	MissingFingerprints(ctx context.Context, limit, offset int) ([]model.Job, error)
	SetFingerprint(ctx context.Context, jobID, fingerprint string) error
}

const defaultBatchSize = 500

// Result reports what one backfill pass did.
type Result struct {
	Updated int // fingerprints written (or would be, in dry-run)
	Skipped int // rows left alone (unique conflict with an existing job)
	Errored int
}

// Runner performs one backfill pass over the whole table.
type Runner struct {
	store     Store
	batchSize int
	dryRun    bool
	logger    *slog.Logger
}

func New(store Store, batchSize int, dryRun bool, logger *slog.Logger) *Runner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Runner{store: store, batchSize: batchSize, dryRun: dryRun, logger: logger}
}

// Run processes every row with an empty fingerprint and returns totals.
// In dry-run mode nothing is written; rows are paged by offset since they
// stay unfilled. In write mode each pass re-reads from offset zero because
// updated rows drop out of the result set.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := r.store.MissingFingerprints(ctx, r.batchSize, offset)
		if err != nil {
			return res, fmt.Errorf("loading backfill batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, job := range batch {
			fp := normalize.Fingerprint(model.NormalizedPosting{
				Title:    normalize.Field(job.Title),
				Company:  normalize.Field(job.Company),
				Location: normalize.Field(job.Location),
			})

			if r.dryRun {
				r.logger.Info("would set fingerprint", "job", job.ID, "fingerprint", fp)
				res.Updated++
				continue
			}

			switch err := r.store.SetFingerprint(ctx, job.ID, fp); {
			case errors.Is(err, model.ErrDuplicateJob):
				// Another row for this user already carries this
				// fingerprint. Leave the conflict for a human.
				r.logger.Warn("fingerprint collides with existing job, skipping",
					"job", job.ID, "fingerprint", fp)
				res.Skipped++
			case err != nil:
				r.logger.Error("failed to set fingerprint", "job", job.ID, "error", err)
				res.Errored++
			default:
				res.Updated++
			}
		}

		if r.dryRun {
			offset += len(batch)
		} else {
			// Skipped and errored rows remain unfilled and would be
			// returned again; step past them.
			offset = res.Skipped + res.Errored
		}
	}

	r.logger.Info("backfill complete",
		"updated", res.Updated, "skipped", res.Skipped, "errored", res.Errored, "dry_run", r.dryRun)
	return res, nil
}
