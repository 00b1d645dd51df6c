// Package dedup decides whether a candidate posting duplicates one already
// in a corpus. The corpus is either the in-flight ingestion batch or a
// user's persisted postings inside the lookback window; the detector itself
// never persists anything.
package dedup

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/jobsift/jobsift/internal/model"
)

// Thresholds configures the fuzzy stage. Company and title must BOTH clear
// their thresholds for a fuzzy match; location acts as a gate deciding
// whether fuzzy comparison is attempted at all.
type Thresholds struct {
	Company  float64
	Title    float64
	Location float64
}

// DefaultThresholds returns the tuned production values.
func DefaultThresholds() Thresholds {
	return Thresholds{Company: 0.80, Title: 0.85, Location: 0.60}
}

type entry struct {
	url         string
	fingerprint string
	title       string
	company     string
	location    string
	jobID       string // empty for in-batch entries
}

// Detector matches candidates against a corpus snapshot using a three-stage
// cascade: exact URL, exact fingerprint, then fuzzy similarity. The cascade
// short-circuits on the first positive stage.
type Detector struct {
	thresholds    Thresholds
	byURL         map[string]*entry
	byFingerprint map[string]*entry
	entries       []*entry
	metric        *metrics.Levenshtein
}

// NewDetector creates an empty detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{
		thresholds:    t,
		byURL:         make(map[string]*entry),
		byFingerprint: make(map[string]*entry),
		metric:        metrics.NewLevenshtein(),
	}
}

// AddPosting indexes an in-batch candidate that has been accepted as novel.
func (d *Detector) AddPosting(p model.NormalizedPosting, fingerprint string) {
	d.add(&entry{
		url:         p.URL,
		fingerprint: fingerprint,
		title:       p.Title,
		company:     p.Company,
		location:    p.Location,
	})
}

// AddJob indexes a persisted job. Its stored fields are normalized on the
// way in so that legacy rows written before normalization existed still
// compare correctly.
func (d *Detector) AddJob(j model.Job, normalizeField func(string) string) {
	d.add(&entry{
		url:         j.URL,
		fingerprint: j.Fingerprint,
		title:       normalizeField(j.Title),
		company:     normalizeField(j.Company),
		location:    normalizeField(j.Location),
		jobID:       j.ID,
	})
}

func (d *Detector) add(e *entry) {
	if e.url != "" {
		if _, ok := d.byURL[e.url]; !ok {
			d.byURL[e.url] = e
		}
	}
	if e.fingerprint != "" {
		if _, ok := d.byFingerprint[e.fingerprint]; !ok {
			d.byFingerprint[e.fingerprint] = e
		}
	}
	d.entries = append(d.entries, e)
}

// Size reports how many entries the corpus holds.
func (d *Detector) Size() int {
	return len(d.entries)
}

// Match runs the cascade for one candidate. Stages are ordered cheapest and
// most precise first; an exact URL hit always wins even when the
// fingerprint would also have matched.
func (d *Detector) Match(p model.NormalizedPosting, fingerprint string) model.DuplicateMatch {
	if p.URL != "" {
		if e, ok := d.byURL[p.URL]; ok {
			return model.DuplicateMatch{IsDuplicate: true, Strategy: model.MatchURL, JobID: e.jobID}
		}
	}

	if e, ok := d.byFingerprint[fingerprint]; ok {
		return model.DuplicateMatch{IsDuplicate: true, Strategy: model.MatchFingerprint, JobID: e.jobID}
	}

	for _, e := range d.entries {
		if !d.locationsComparable(p.Location, e.location) {
			continue
		}

		companySim := d.similarity(p.Company, e.company)
		if companySim < d.thresholds.Company {
			continue
		}
		titleSim := d.similarity(p.Title, e.title)
		if titleSim < d.thresholds.Title {
			continue
		}

		return model.DuplicateMatch{
			IsDuplicate: true,
			Strategy:    model.MatchFuzzy,
			JobID:       e.jobID,
			CompanySim:  companySim,
			TitleSim:    titleSim,
		}
	}

	return model.DuplicateMatch{}
}

// locationsComparable gates fuzzy matching: "remote" vs "berlin, de" must
// never reach the similarity stage. Equal strings (including both empty)
// always pass.
func (d *Detector) locationsComparable(a, b string) bool {
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	return d.similarity(a, b) >= d.thresholds.Location
}

func (d *Detector) similarity(a, b string) float64 {
	return strutil.Similarity(a, b, d.metric)
}
