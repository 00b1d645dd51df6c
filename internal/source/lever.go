package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const leverBaseURL = "https://api.lever.co/v0/postings"

// leverCategories represents the categories object in a Lever job.
type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

// leverJob represents a single job in the Lever API response.
type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
	ApplyURL         string          `json:"applyUrl"`
}

// LeverAdapter fetches postings from the Lever public postings API for a
// configured set of company boards.
type LeverAdapter struct {
	boards []Board
	client *http.Client
}

// NewLeverAdapter creates an adapter over the given boards. Board.Token is
// the Lever company slug.
func NewLeverAdapter(boards []Board, client *http.Client) *LeverAdapter {
	return &LeverAdapter{boards: boards, client: client}
}

func (a *LeverAdapter) Name() string { return "lever" }

// Fetch retrieves postings from every configured board that match the query.
func (a *LeverAdapter) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	var postings []model.RawPosting
	for _, b := range a.boards {
		batch, err := a.fetchBoard(ctx, b)
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			if matchesQuery(q, p.Title, p.Location) {
				postings = append(postings, p)
			}
		}
	}
	return postings, nil
}

func (a *LeverAdapter) fetchBoard(ctx context.Context, b Board) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, b.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("lever fetch for %s: unexpected status %d", b.Token, resp.StatusCode),
		}
	}

	var leverJobs []leverJob
	if err := json.NewDecoder(resp.Body).Decode(&leverJobs); err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", b.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(leverJobs))
	for _, lj := range leverJobs {
		// Prefer allLocations if available, fallback to location.
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		description := lj.DescriptionPlain
		if description == "" {
			description = extractText(lj.Description)
		}

		p := model.RawPosting{
			Title:       lj.Text,
			Company:     b.Company,
			Location:    location,
			Description: description,
			URL:         lj.HostedURL,
			Source:      a.Name(),
		}

		// createdAt is Unix milliseconds.
		if lj.CreatedAt > 0 {
			t := time.UnixMilli(lj.CreatedAt)
			p.PostedAt = &t
		}

		postings = append(postings, p)
	}

	return postings, nil
}
