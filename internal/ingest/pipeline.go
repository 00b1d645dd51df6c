// Package ingest drives one end-to-end ingestion run: concurrent fetch from
// every enabled source, normalization, cross-source dedup, dedup against the
// user's persisted postings, and additive persistence. A run always finishes
// and reports statistics; individual source or insert failures degrade their
// contribution without failing the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobsift/jobsift/internal/dedup"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/normalize"
)

// Options tunes a Pipeline. Zero values fall back to defaults.
type Options struct {
	Thresholds    dedup.Thresholds
	Lookback      time.Duration // persisted-dedup window, default 30 days
	FetchTimeout  time.Duration // per-source timeout, default 30s
	MaxConcurrent int           // simultaneous source fetches, default 4
}

const (
	defaultLookback      = 30 * 24 * time.Hour
	defaultFetchTimeout  = 30 * time.Second
	defaultMaxConcurrent = 4
)

// Pipeline owns the ingestion state machine for any number of users. It
// holds no per-run state, so runs for different users may proceed in
// parallel.
type Pipeline struct {
	sources []model.SourceAdapter
	store   model.JobStore
	opts    Options
	logger  *slog.Logger
}

// New creates a pipeline over the given sources. Source order is
// significant: cross-source dedup processes sources in this order, so
// first-seen-wins is reproducible across runs.
func New(sources []model.SourceAdapter, store model.JobStore, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Thresholds == (dedup.Thresholds{}) {
		opts.Thresholds = dedup.DefaultThresholds()
	}
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	return &Pipeline{sources: sources, store: store, opts: opts, logger: logger}
}

// candidate pairs a normalized posting with its precomputed fingerprint.
type candidate struct {
	posting     model.NormalizedPosting
	fingerprint string
}

// Run executes one ingestion for a user. It returns an error only when the
// persisted corpus cannot be loaded or the caller cancels; every other
// failure is absorbed into the returned stats.
func (p *Pipeline) Run(ctx context.Context, userID string, q model.Query) (model.IngestionStats, error) {
	stats := model.IngestionStats{PerSource: make(map[string]*model.SourceStats)}

	if len(p.sources) == 0 {
		// Distinguishable from "no new jobs today".
		stats.Failures = append(stats.Failures, model.SourceFailure{
			Source: "config",
			Reason: "no sources enabled",
		})
		p.logger.Warn("ingestion run with zero enabled sources", "user", userID)
		return stats, nil
	}

	fetched, failures := p.fetchAll(ctx, q)
	stats.Failures = failures

	candidates := p.collapseBatch(fetched, &stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	survivors, err := p.dedupAgainstPersisted(ctx, userID, candidates, &stats)
	if err != nil {
		return stats, err
	}

	if err := p.persist(ctx, userID, survivors, &stats); err != nil {
		return stats, err
	}

	p.logger.Info("ingestion run complete",
		"user", userID,
		"fetched", stats.Fetched,
		"dropped", stats.Dropped,
		"cross_source_duplicates", stats.CrossSourceDuplicates,
		"persisted_duplicates", stats.PersistedDuplicates,
		"new_jobs", stats.NewJobs,
		"failed_sources", len(stats.Failures),
	)
	return stats, nil
}

// fetchAll invokes every source concurrently with a per-source timeout and a
// cap on simultaneous fetches. Results are slotted by source index so the
// downstream order stays deterministic no matter which fetch finishes first.
func (p *Pipeline) fetchAll(ctx context.Context, q model.Query) ([][]model.RawPosting, []model.SourceFailure) {
	results := make([][]model.RawPosting, len(p.sources))
	errs := make([]error, len(p.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrent)
	for i, src := range p.sources {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, p.opts.FetchTimeout)
			defer cancel()

			postings, err := src.Fetch(fctx, q)
			if err != nil {
				// A failed source contributes nothing; the run goes on.
				errs[i] = err
				return nil
			}
			results[i] = postings
			return nil
		})
	}
	g.Wait()

	var failures []model.SourceFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		name := p.sources[i].Name()
		p.logger.Warn("source fetch failed", "source", name, "error", err)
		failures = append(failures, model.SourceFailure{Source: name, Reason: err.Error()})
	}
	return results, failures
}

// collapseBatch normalizes every fetched posting and collapses duplicates
// across sources. Sources are walked in configuration order and postings in
// provider order, so the first occurrence of a posting always wins.
func (p *Pipeline) collapseBatch(fetched [][]model.RawPosting, stats *model.IngestionStats) []candidate {
	batch := dedup.NewDetector(p.opts.Thresholds)

	var candidates []candidate
	for i, postings := range fetched {
		name := p.sources[i].Name()
		src := stats.SourceStats(name)

		for _, raw := range postings {
			stats.Fetched++
			src.Fetched++

			norm, err := normalize.Posting(raw)
			if err != nil {
				stats.Dropped++
				src.Dropped++
				p.logger.Debug("dropped unusable posting", "source", name, "reason", err)
				continue
			}
			fp := normalize.Fingerprint(norm)

			if m := batch.Match(norm, fp); m.IsDuplicate {
				stats.CrossSourceDuplicates++
				src.CrossSourceDuplicates++
				continue
			}

			batch.AddPosting(norm, fp)
			candidates = append(candidates, candidate{posting: norm, fingerprint: fp})
		}
	}
	return candidates
}

// dedupAgainstPersisted matches the batch against one snapshot of the
// user's jobs inside the lookback window. Anything older than the window is
// deliberately invisible: a genuinely new listing matching an ancient row
// is still novel.
func (p *Pipeline) dedupAgainstPersisted(ctx context.Context, userID string, candidates []candidate, stats *model.IngestionStats) ([]candidate, error) {
	cutoff := time.Now().Add(-p.opts.Lookback)
	existing, err := p.store.FindPostingsSince(ctx, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("loading persisted postings for %s: %w", userID, err)
	}

	persisted := dedup.NewDetector(p.opts.Thresholds)
	for _, j := range existing {
		persisted.AddJob(j, normalize.Field)
	}

	var survivors []candidate
	for _, c := range candidates {
		if m := persisted.Match(c.posting, c.fingerprint); m.IsDuplicate {
			stats.PersistedDuplicates++
			stats.SourceStats(c.posting.Source).PersistedDuplicates++
			p.logger.Debug("suppressed known posting",
				"user", userID,
				"title", c.posting.Title,
				"strategy", m.Strategy,
				"matched_job", m.JobID,
			)
			continue
		}
		survivors = append(survivors, c)
	}
	return survivors, nil
}

// persist writes the surviving candidates as new Job rows. A uniqueness
// conflict means some concurrent run inserted the same posting first; it is
// counted as a duplicate, not an error. Other insert failures are logged
// and skipped without failing the batch.
func (p *Pipeline) persist(ctx context.Context, userID string, survivors []candidate, stats *model.IngestionStats) error {
	for _, c := range survivors {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := p.store.InsertJob(ctx, userID, c.posting, c.fingerprint)
		switch {
		case errors.Is(err, model.ErrDuplicateJob):
			stats.PersistedDuplicates++
			stats.SourceStats(c.posting.Source).PersistedDuplicates++
		case err != nil:
			p.logger.Error("insert failed, skipping posting",
				"user", userID,
				"title", c.posting.Title,
				"source", c.posting.Source,
				"error", err,
			)
		default:
			stats.NewJobs++
			stats.SourceStats(c.posting.Source).NewJobs++
		}
	}
	return nil
}
