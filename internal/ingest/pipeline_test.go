package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

type fakeSource struct {
	name     string
	postings []model.RawPosting
	err      error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.postings, nil
}

type fakeStore struct {
	mu          sync.Mutex
	existing    []model.Job
	findErr     error
	insertErr   error
	inserted    []model.NormalizedPosting
	lastCutoff  time.Time
	lastUserID  string
	nextID      int
	insertCalls int
}

func (f *fakeStore) FindPostingsSince(ctx context.Context, userID string, cutoff time.Time) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUserID = userID
	f.lastCutoff = cutoff
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.existing, nil
}

func (f *fakeStore) InsertJob(ctx context.Context, userID string, p model.NormalizedPosting, fingerprint string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.inserted = append(f.inserted, p)
	f.nextID++
	return fmt.Sprintf("job-%d", f.nextID), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func raw(source, title, company, location, url string) model.RawPosting {
	return model.RawPosting{
		Title:    title,
		Company:  company,
		Location: location,
		URL:      url,
		Source:   source,
	}
}

func TestRun_PersistsNovelPostings(t *testing.T) {
	srcA := &fakeSource{name: "greenhouse", postings: []model.RawPosting{
		raw("greenhouse", "Backend Engineer", "Acme", "Remote", "https://boards.greenhouse.io/acme/1"),
	}}
	srcB := &fakeSource{name: "lever", postings: []model.RawPosting{
		raw("lever", "Data Scientist", "Initech", "Berlin", "https://jobs.lever.co/initech/2"),
	}}
	st := &fakeStore{}

	p := New([]model.SourceAdapter{srcA, srcB}, st, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "user-1", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Fetched != 2 || stats.NewJobs != 2 {
		t.Errorf("fetched=%d new=%d, want 2 and 2", stats.Fetched, stats.NewJobs)
	}
	if len(stats.Failures) != 0 {
		t.Errorf("unexpected failures: %v", stats.Failures)
	}
	if got := stats.PerSource["greenhouse"].NewJobs; got != 1 {
		t.Errorf("greenhouse new jobs = %d, want 1", got)
	}
	if st.lastUserID != "user-1" {
		t.Errorf("store queried for user %q", st.lastUserID)
	}
}

func TestRun_CollapsesAcrossSources_FirstSeenWins(t *testing.T) {
	// Same posting in three shapes. Whitespace and case differences must
	// collapse; the copy from the first configured source survives.
	srcA := &fakeSource{name: "greenhouse", postings: []model.RawPosting{
		raw("greenhouse", "Senior  Backend Engineer", "Acme Corp", "Remote", "https://boards.greenhouse.io/acme/1"),
	}}
	srcB := &fakeSource{name: "lever", postings: []model.RawPosting{
		raw("lever", "senior backend engineer", "ACME CORP", "remote", "https://jobs.lever.co/acme/1"),
	}}
	srcC := &fakeSource{name: "remotive", postings: []model.RawPosting{
		raw("remotive", "Senior Backend Engineer ", " acme corp", "Remote", "https://remotive.com/jobs/1"),
	}}
	st := &fakeStore{}

	p := New([]model.SourceAdapter{srcA, srcB, srcC}, st, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.NewJobs != 1 || stats.CrossSourceDuplicates != 2 {
		t.Fatalf("new=%d crossDup=%d, want 1 and 2", stats.NewJobs, stats.CrossSourceDuplicates)
	}
	if len(st.inserted) != 1 || st.inserted[0].Source != "greenhouse" {
		t.Fatalf("surviving copy came from %q, want greenhouse", st.inserted[0].Source)
	}
}

func TestRun_SuppressesPersistedDuplicates(t *testing.T) {
	srcA := &fakeSource{name: "greenhouse", postings: []model.RawPosting{
		raw("greenhouse", "Backend Engineer", "Acme", "Remote", "https://boards.greenhouse.io/acme/1"),
		raw("greenhouse", "Frontend Engineer", "Acme", "Remote", "https://boards.greenhouse.io/acme/2"),
	}}
	st := &fakeStore{existing: []model.Job{{
		ID:        "existing-1",
		UserID:    "u",
		Title:     "Backend Engineer",
		Company:   "Acme",
		Location:  "Remote",
		URL:       "https://example.com/other-url",
		FirstSeen: time.Now().Add(-24 * time.Hour),
	}}}

	p := New([]model.SourceAdapter{srcA}, st, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.PersistedDuplicates != 1 {
		t.Errorf("persisted duplicates = %d, want 1", stats.PersistedDuplicates)
	}
	if stats.NewJobs != 1 {
		t.Errorf("new jobs = %d, want 1", stats.NewJobs)
	}
	if len(st.inserted) != 1 || st.inserted[0].Title != "frontend engineer" {
		t.Fatalf("inserted %+v, want only the frontend posting", st.inserted)
	}
}

func TestRun_LookbackCutoff(t *testing.T) {
	st := &fakeStore{}
	p := New([]model.SourceAdapter{&fakeSource{name: "lever"}}, st, Options{
		Lookback: 7 * 24 * time.Hour,
	}, testLogger())

	before := time.Now().Add(-7 * 24 * time.Hour)
	if _, err := p.Run(context.Background(), "u", model.Query{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	after := time.Now().Add(-7 * 24 * time.Hour)

	if st.lastCutoff.Before(before) || st.lastCutoff.After(after) {
		t.Errorf("cutoff %v not within 7-day window bounds [%v, %v]", st.lastCutoff, before, after)
	}
}

func TestRun_SourceFailureDoesNotAbort(t *testing.T) {
	down := &fakeSource{name: "adzuna", err: errors.New("api quota exceeded")}
	up := &fakeSource{name: "lever", postings: []model.RawPosting{
		raw("lever", "SRE", "Initech", "Remote", "https://jobs.lever.co/initech/9"),
	}}

	p := New([]model.SourceAdapter{down, up}, &fakeStore{}, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(stats.Failures) != 1 || stats.Failures[0].Source != "adzuna" {
		t.Fatalf("failures = %+v, want one adzuna failure", stats.Failures)
	}
	if stats.NewJobs != 1 {
		t.Errorf("new jobs = %d, want 1", stats.NewJobs)
	}
}

func TestRun_AllSourcesFail(t *testing.T) {
	srcs := []model.SourceAdapter{
		&fakeSource{name: "greenhouse", err: errors.New("boom")},
		&fakeSource{name: "lever", err: errors.New("bust")},
	}
	st := &fakeStore{}

	p := New(srcs, st, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run should absorb source failures, got %v", err)
	}
	if len(stats.Failures) != 2 {
		t.Errorf("failures = %d, want 2", len(stats.Failures))
	}
	if stats.NewJobs != 0 || st.insertCalls != 0 {
		t.Errorf("nothing should have been persisted, got new=%d inserts=%d", stats.NewJobs, st.insertCalls)
	}
}

func TestRun_NoSourcesConfigured(t *testing.T) {
	p := New(nil, &fakeStore{}, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Source != "config" {
		t.Fatalf("failures = %+v, want a single config failure", stats.Failures)
	}
}

func TestRun_StoreLoadFailureIsFatal(t *testing.T) {
	src := &fakeSource{name: "lever", postings: []model.RawPosting{
		raw("lever", "SRE", "Initech", "Remote", "https://jobs.lever.co/initech/9"),
	}}
	st := &fakeStore{findErr: errors.New("disk on fire")}

	p := New([]model.SourceAdapter{src}, st, Options{}, testLogger())
	if _, err := p.Run(context.Background(), "u", model.Query{}); err == nil {
		t.Fatal("expected error when persisted corpus cannot be loaded")
	}
}

func TestRun_InsertRaceCountedAsDuplicate(t *testing.T) {
	src := &fakeSource{name: "lever", postings: []model.RawPosting{
		raw("lever", "SRE", "Initech", "Remote", "https://jobs.lever.co/initech/9"),
	}}
	st := &fakeStore{insertErr: model.ErrDuplicateJob}

	p := New([]model.SourceAdapter{src}, st, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.PersistedDuplicates != 1 || stats.NewJobs != 0 {
		t.Errorf("persistedDup=%d new=%d, want 1 and 0", stats.PersistedDuplicates, stats.NewJobs)
	}
}

func TestRun_DropsUnusablePostings(t *testing.T) {
	src := &fakeSource{name: "remotive", postings: []model.RawPosting{
		raw("remotive", "", "Acme", "Remote", "https://remotive.com/jobs/1"),
		raw("remotive", "Backend Engineer", "", "Remote", "https://remotive.com/jobs/2"),
		raw("remotive", "Backend Engineer", "Acme", "Remote", "https://remotive.com/jobs/3"),
	}}
	st := &fakeStore{}

	p := New([]model.SourceAdapter{src}, st, Options{}, testLogger())
	stats, err := p.Run(context.Background(), "u", model.Query{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Dropped != 2 || stats.NewJobs != 1 {
		t.Errorf("dropped=%d new=%d, want 2 and 1", stats.Dropped, stats.NewJobs)
	}
	if got := stats.PerSource["remotive"].Dropped; got != 2 {
		t.Errorf("remotive dropped = %d, want 2", got)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{name: "lever", postings: []model.RawPosting{
		raw("lever", "SRE", "Initech", "Remote", "https://jobs.lever.co/initech/9"),
	}}
	p := New([]model.SourceAdapter{src}, &fakeStore{}, Options{}, testLogger())
	if _, err := p.Run(ctx, "u", model.Query{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
