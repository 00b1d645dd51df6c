package dedup

import (
	"strings"
	"testing"

	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/normalize"
)

func normField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func posting(title, company, location, url string) model.NormalizedPosting {
	return model.NormalizedPosting{Title: title, Company: company, Location: location, URL: url}
}

func TestMatch_URLWinsOverFingerprint(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	existing := posting("data scientist", "google", "mountain view", "https://example.com/jobs/1")
	d.AddPosting(existing, normalize.Fingerprint(existing))

	// Identical content AND identical URL: fingerprint would match too, but
	// the URL stage must report first.
	candidate := posting("data scientist", "google", "mountain view", "https://example.com/jobs/1")
	m := d.Match(candidate, normalize.Fingerprint(candidate))

	if !m.IsDuplicate {
		t.Fatal("expected duplicate")
	}
	if m.Strategy != model.MatchURL {
		t.Errorf("strategy = %q, want %q", m.Strategy, model.MatchURL)
	}
}

func TestMatch_FingerprintWhenURLDiffers(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	existing := posting("data scientist", "google", "mountain view", "https://example.com/jobs/1")
	d.AddPosting(existing, normalize.Fingerprint(existing))

	candidate := posting("data scientist", "google", "mountain view", "https://other-board.com/xyz")
	m := d.Match(candidate, normalize.Fingerprint(candidate))

	if !m.IsDuplicate {
		t.Fatal("expected duplicate")
	}
	if m.Strategy != model.MatchFingerprint {
		t.Errorf("strategy = %q, want %q", m.Strategy, model.MatchFingerprint)
	}
}

func TestMatch_FuzzyThresholdsAreConjunctive(t *testing.T) {
	tests := []struct {
		name      string
		existing  model.NormalizedPosting
		candidate model.NormalizedPosting
		wantDup   bool
	}{
		{
			name:      "near title and near company matches",
			existing:  posting("senior data scientist", "tech corp", "berlin", "https://a.example/1"),
			candidate: posting("senior data scientist.", "techcorp", "berlin", "https://b.example/2"),
			wantDup:   true,
		},
		{
			name:      "identical company but unrelated title is not a duplicate",
			existing:  posting("senior data scientist", "tech corp", "berlin", "https://a.example/1"),
			candidate: posting("principal product manager", "tech corp", "berlin", "https://b.example/2"),
			wantDup:   false,
		},
		{
			name:      "identical title at a different company is not a duplicate",
			existing:  posting("senior data scientist", "tech corp", "berlin", "https://a.example/1"),
			candidate: posting("senior data scientist", "initech", "berlin", "https://b.example/2"),
			wantDup:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDetector(DefaultThresholds())
			d.AddPosting(tc.existing, normalize.Fingerprint(tc.existing))

			m := d.Match(tc.candidate, normalize.Fingerprint(tc.candidate))
			if m.IsDuplicate != tc.wantDup {
				t.Errorf("IsDuplicate = %v, want %v (match: %+v)", m.IsDuplicate, tc.wantDup, m)
			}
			if tc.wantDup && m.Strategy != model.MatchFuzzy {
				t.Errorf("strategy = %q, want %q", m.Strategy, model.MatchFuzzy)
			}
		})
	}
}

func TestMatch_LocationGateBlocksFuzzy(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	existing := posting("senior data scientist", "tech corp", "berlin, de", "https://a.example/1")
	d.AddPosting(existing, normalize.Fingerprint(existing))

	// Same title and company, but "remote" must never be fuzzy-compared
	// against "berlin, de". Different location also means a different
	// fingerprint, so no earlier stage fires either.
	candidate := posting("senior data scientist", "tech corp", "remote", "https://b.example/2")
	m := d.Match(candidate, normalize.Fingerprint(candidate))

	if m.IsDuplicate {
		t.Errorf("expected novel posting, got duplicate via %q", m.Strategy)
	}
}

func TestMatch_EmptyLocationsCompareEqual(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	existing := posting("backend engineer", "acme", "", "https://a.example/1")
	d.AddPosting(existing, normalize.Fingerprint(existing))

	candidate := posting("backend engineer.", "acme", "", "https://b.example/2")
	if m := d.Match(candidate, normalize.Fingerprint(candidate)); !m.IsDuplicate {
		t.Error("two postings without locations should still be fuzzy-comparable")
	}

	// One empty, one set: the gate must block.
	located := posting("backend engineer.", "acme", "berlin", "https://c.example/3")
	if m := d.Match(located, normalize.Fingerprint(located)); m.IsDuplicate {
		t.Error("empty vs non-empty location must not be fuzzy-comparable")
	}
}

func TestMatch_NovelCandidate(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	existing := posting("data scientist", "google", "mountain view", "https://a.example/1")
	d.AddPosting(existing, normalize.Fingerprint(existing))

	candidate := posting("ios developer", "initech", "austin", "https://b.example/2")
	m := d.Match(candidate, normalize.Fingerprint(candidate))

	if m.IsDuplicate {
		t.Errorf("expected novel, got duplicate: %+v", m)
	}
	if m.Strategy != "" {
		t.Errorf("novel match should carry no strategy, got %q", m.Strategy)
	}
}

func TestMatch_AgainstPersistedJobsReturnsJobID(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	job := model.Job{
		ID:          "job-42",
		Title:       "Data  Scientist", // stored before normalization existed
		Company:     "Google",
		Location:    "Mountain View",
		URL:         "https://careers.google.com/jobs/42",
		Fingerprint: "",
	}
	d.AddJob(job, normField)

	candidate := posting("data scientist.", "google", "mountain view", "https://b.example/2")
	m := d.Match(candidate, normalize.Fingerprint(candidate))

	if !m.IsDuplicate {
		t.Fatal("expected duplicate against persisted job")
	}
	if m.JobID != "job-42" {
		t.Errorf("JobID = %q, want %q", m.JobID, "job-42")
	}
}

func TestDetector_EmptyCorpusMatchesNothing(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	candidate := posting("engineer", "acme", "remote", "https://a.example/1")
	if m := d.Match(candidate, normalize.Fingerprint(candidate)); m.IsDuplicate {
		t.Error("empty corpus must match nothing")
	}
	if d.Size() != 0 {
		t.Errorf("Size = %d, want 0", d.Size())
	}
}
