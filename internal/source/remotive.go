package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const remotiveBaseURL = "https://remotive.com/api/remote-jobs"

// remotiveJob represents a single job in the Remotive API response.
type remotiveJob struct {
	Title           string   `json:"title"`
	CompanyName     string   `json:"company_name"`
	Location        string   `json:"candidate_required_location"`
	URL             string   `json:"url"`
	Description     string   `json:"description"`
	Salary          string   `json:"salary"`
	Tags            []string `json:"tags"`
	PublicationDate string   `json:"publication_date"`
}

// remotiveResponse is the top-level Remotive API response.
type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

// RemotiveAdapter fetches postings from the Remotive public remote-jobs API.
// Key-less; supports a server-side search term, location is filtered
// client-side.
type RemotiveAdapter struct {
	client *http.Client
}

// NewRemotiveAdapter creates a Remotive adapter.
func NewRemotiveAdapter(client *http.Client) *RemotiveAdapter {
	return &RemotiveAdapter{client: client}
}

func (a *RemotiveAdapter) Name() string { return "remotive" }

// Fetch retrieves postings matching the query.
func (a *RemotiveAdapter) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	endpoint := remotiveBaseURL
	if len(q.Skills) > 0 {
		params := url.Values{}
		params.Set("search", strings.Join(q.Skills, " "))
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("remotive fetch: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remotive fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("remotive fetch: unexpected status %d", resp.StatusCode),
		}
	}

	var rResp remotiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		return nil, fmt.Errorf("remotive fetch: %w", err)
	}

	postings := make([]model.RawPosting, 0, len(rResp.Jobs))
	for _, rj := range rResp.Jobs {
		if len(q.Locations) > 0 && !containsAny(rj.Location, q.Locations) {
			continue
		}

		p := model.RawPosting{
			Title:       rj.Title,
			Company:     rj.CompanyName,
			Location:    rj.Location,
			Description: extractText(rj.Description),
			URL:         rj.URL,
			Source:      a.Name(),
			Salary:      rj.Salary,
			Tags:        rj.Tags,
		}

		if rj.PublicationDate != "" {
			// Remotive returns "2026-02-13T10:00:00" without a zone.
			if t, err := time.Parse("2006-01-02T15:04:05", rj.PublicationDate); err == nil {
				p.PostedAt = &t
			}
		}

		postings = append(postings, p)
	}

	return postings, nil
}
