package model

import (
	"context"
	"time"
)

// RawPosting is a job posting exactly as a source adapter returned it,
// reduced to a single common shape. It lives only for the duration of one
// ingestion run and is never persisted.
type RawPosting struct {
	Title       string
	Company     string
	Location    string
	Description string
	URL         string     // application/listing link as given by the provider
	Source      string     // provider name, e.g. "greenhouse"
	Salary      string     // free-form, provider-specific
	Tags        []string   // provider-specific labels
	PostedAt    *time.Time // nullable (not all providers expose this)
}

// NormalizedPosting is a RawPosting after canonicalization: title, company
// and location are lower-cased with collapsed whitespace, and the URL has
// had its scheme/host lower-cased and tracking parameters stripped.
type NormalizedPosting struct {
	Title       string
	Company     string
	Location    string
	URL         string
	Description string
	Source      string
	Salary      string
	Tags        []string
	PostedAt    *time.Time
}

// Job is the persisted canonical record, scoped per user. Status and Notes
// are owned by CRUD collaborators outside the pipeline; ingestion only sets
// their defaults at insert time and never touches a row afterwards.
type Job struct {
	ID          string // uuid
	UserID      string
	Title       string
	Company     string
	Location    string
	URL         string
	Fingerprint string
	Source      string
	FirstSeen   time.Time
	Status      string
	Notes       string
}

// MatchStrategy identifies which detector stage produced a duplicate verdict.
type MatchStrategy string

const (
	MatchURL         MatchStrategy = "url"
	MatchFingerprint MatchStrategy = "fingerprint"
	MatchFuzzy       MatchStrategy = "fuzzy"
)

// DuplicateMatch is the duplicate detector's verdict for one candidate.
type DuplicateMatch struct {
	IsDuplicate bool
	Strategy    MatchStrategy
	JobID       string  // matched persisted job, empty for in-batch matches
	CompanySim  float64 // populated for fuzzy matches
	TitleSim    float64 // populated for fuzzy matches
}

// SourceFailure records one provider's failure during a run. Failures never
// abort the run; they are surfaced through IngestionStats.
type SourceFailure struct {
	Source string
	Reason string
}

// SourceStats is the per-provider breakdown of one ingestion run.
type SourceStats struct {
	Fetched               int
	Dropped               int // failed normalization (missing title/company)
	CrossSourceDuplicates int
	PersistedDuplicates   int
	NewJobs               int
}

// IngestionStats summarizes one ingestion run. A run always produces stats,
// even when every source failed.
type IngestionStats struct {
	Fetched               int
	Dropped               int
	CrossSourceDuplicates int
	PersistedDuplicates   int
	NewJobs               int
	Failures              []SourceFailure
	PerSource             map[string]*SourceStats
}

// SourceStats returns the per-provider bucket for name, allocating it on
// first use.
func (s *IngestionStats) SourceStats(name string) *SourceStats {
	if s.PerSource == nil {
		s.PerSource = make(map[string]*SourceStats)
	}
	st, ok := s.PerSource[name]
	if !ok {
		st = &SourceStats{}
		s.PerSource[name] = st
	}
	return st
}

// Query describes what to search for on each provider.
type Query struct {
	Skills    []string
	Locations []string
}

// SourceAdapter fetches raw postings from one external provider.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]RawPosting, error)
}

// JobStore is the persistence surface the pipeline depends on. The store
// must enforce per-user uniqueness on fingerprint and on canonical URL;
// violations are reported as ErrDuplicateJob.
type JobStore interface {
	FindPostingsSince(ctx context.Context, userID string, cutoff time.Time) ([]Job, error)
	InsertJob(ctx context.Context, userID string, p NormalizedPosting, fingerprint string) (string, error)
}
