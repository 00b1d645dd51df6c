package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3 // max 150 results per location
)

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Company     adzunaCompany  `json:"company"`
	Location    adzunaLocation `json:"location"`
	SalaryMin   float64        `json:"salary_min"`
	SalaryMax   float64        `json:"salary_max"`
	RedirectURL string         `json:"redirect_url"`
	Created     string         `json:"created"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// AdzunaAdapter fetches postings from the Adzuna search API. Unlike the
// board adapters it supports server-side search, so skills and locations go
// straight into the request.
type AdzunaAdapter struct {
	appID   string
	appKey  string
	country string // "us", "gb", "de", …
	client  *http.Client
}

// NewAdzunaAdapter creates an adapter with API credentials.
func NewAdzunaAdapter(appID, appKey, country string, client *http.Client) *AdzunaAdapter {
	return &AdzunaAdapter{appID: appID, appKey: appKey, country: country, client: client}
}

func (a *AdzunaAdapter) Name() string { return "adzuna" }

// Fetch runs one paginated search per query location (or a single
// location-less search) and concatenates the results.
func (a *AdzunaAdapter) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	if a.appID == "" || a.appKey == "" {
		return nil, fmt.Errorf("adzuna credentials not configured")
	}

	what := strings.Join(q.Skills, " ")
	locations := q.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	var postings []model.RawPosting
	for _, where := range locations {
		batch, err := a.search(ctx, what, where)
		if err != nil {
			return nil, err
		}
		postings = append(postings, batch...)
	}
	return postings, nil
}

// search iterates pages until no more results or adzunaMaxPages is reached.
func (a *AdzunaAdapter) search(ctx context.Context, what, where string) ([]model.RawPosting, error) {
	var results []model.RawPosting
	for page := 1; page <= adzunaMaxPages; page++ {
		batch, err := a.fetchPage(ctx, what, where, page)
		if err != nil {
			return nil, fmt.Errorf("adzuna page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		results = append(results, batch...)
		if len(batch) < adzunaPageSize {
			break // last page
		}
	}
	return results, nil
}

func (a *AdzunaAdapter) fetchPage(ctx context.Context, what, where string, page int) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", adzunaBaseURL, a.country, page)

	params := url.Values{}
	params.Set("app_id", a.appID)
	params.Set("app_key", a.appKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("sort_by", "date")
	if what != "" {
		params.Set("what", what)
	}
	if where != "" {
		params.Set("where", where)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("adzuna returned %d", resp.StatusCode),
		}
	}

	var apiResp adzunaResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	postings := make([]model.RawPosting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		p := model.RawPosting{
			Title:       r.Title,
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Description: r.Description,
			URL:         r.RedirectURL,
			Source:      a.Name(),
			Salary:      formatSalary(r.SalaryMin, r.SalaryMax),
		}
		if r.Created != "" {
			if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
				p.PostedAt = &t
			}
		}
		postings = append(postings, p)
	}

	return postings, nil
}

func formatSalary(min, max float64) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("%.0f-%.0f", min, max)
	case min > 0:
		return fmt.Sprintf("%.0f+", min)
	case max > 0:
		return fmt.Sprintf("up to %.0f", max)
	default:
		return ""
	}
}
