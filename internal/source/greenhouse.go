package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// Board identifies one company's board on a hosted ATS.
type Board struct {
	Token   string // board token in the provider's URL scheme
	Company string // display name used on resulting postings
}

// greenhouseJob represents a single job in the Greenhouse API response.
type greenhouseJob struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Location    greenhouseLocation `json:"location"`
	AbsoluteURL string             `json:"absolute_url"`
	UpdatedAt   string             `json:"updated_at"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

// greenhouseResponse is the top-level Greenhouse jobs API response.
type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseAdapter fetches postings from the Greenhouse public boards API
// for a configured set of company boards. The boards API has no search
// endpoint, so the query is applied client-side.
type GreenhouseAdapter struct {
	boards []Board
	client *http.Client
}

// NewGreenhouseAdapter creates an adapter over the given boards.
func NewGreenhouseAdapter(boards []Board, client *http.Client) *GreenhouseAdapter {
	return &GreenhouseAdapter{boards: boards, client: client}
}

func (a *GreenhouseAdapter) Name() string { return "greenhouse" }

// Fetch retrieves postings from every configured board that match the query.
func (a *GreenhouseAdapter) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
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

func (a *GreenhouseAdapter) fetchBoard(ctx context.Context, b Board) ([]model.RawPosting, error) {
	url := fmt.Sprintf("%s/%s/jobs", greenhouseBaseURL, b.Token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("greenhouse fetch for %s: unexpected status %d", b.Token, resp.StatusCode),
		}
	}

	var ghResp greenhouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", b.Token, err)
	}

	postings := make([]model.RawPosting, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		p := model.RawPosting{
			Title:    gj.Title,
			Company:  b.Company,
			Location: gj.Location.Name,
			URL:      gj.AbsoluteURL,
			Source:   a.Name(),
		}

		if gj.UpdatedAt != "" {
			t, err := time.Parse(time.RFC3339, gj.UpdatedAt)
			if err == nil {
				p.PostedAt = &t
			}
		}

		postings = append(postings, p)
	}

	return postings, nil
}
