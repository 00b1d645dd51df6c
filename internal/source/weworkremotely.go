package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jobsift/jobsift/internal/model"
)

const wwrBaseURL = "https://weworkremotely.com"

// WeWorkRemotelyAdapter scrapes the We Work Remotely HTML search page.
// There is no public API, so postings are extracted from the listing markup
// with goquery.
type WeWorkRemotelyAdapter struct {
	client *http.Client
}

// NewWeWorkRemotelyAdapter creates a We Work Remotely scraper.
func NewWeWorkRemotelyAdapter(client *http.Client) *WeWorkRemotelyAdapter {
	return &WeWorkRemotelyAdapter{client: client}
}

func (a *WeWorkRemotelyAdapter) Name() string { return "weworkremotely" }

// Fetch runs one search per query skill and concatenates the scraped
// postings. Location filtering happens client-side.
func (a *WeWorkRemotelyAdapter) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	terms := q.Skills
	if len(terms) == 0 {
		terms = []string{""}
	}

	seen := make(map[string]bool) // multiple skills can surface the same listing
	var postings []model.RawPosting
	for _, term := range terms {
		batch, err := a.search(ctx, term)
		if err != nil {
			return nil, err
		}
		for _, p := range batch {
			if seen[p.URL] {
				continue
			}
			seen[p.URL] = true
			if len(q.Locations) > 0 && !containsAny(p.Location, q.Locations) {
				continue
			}
			postings = append(postings, p)
		}
	}
	return postings, nil
}

func (a *WeWorkRemotelyAdapter) search(ctx context.Context, term string) ([]model.RawPosting, error) {
	endpoint := wwrBaseURL + "/remote-jobs/search"
	if term != "" {
		params := url.Values{}
		params.Set("term", term)
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("weworkremotely fetch: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; jobsift)")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weworkremotely fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("weworkremotely fetch: unexpected status %d", resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weworkremotely parse: %w", err)
	}

	var postings []model.RawPosting
	doc.Find("section.jobs li").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("view-all") {
			return
		}

		title := strings.TrimSpace(s.Find("span.title").First().Text())
		company := strings.TrimSpace(s.Find("span.company").First().Text())
		region := strings.TrimSpace(s.Find("span.region").First().Text())
		if title == "" || company == "" {
			return
		}

		href := ""
		// The listing anchor is the one pointing at a job page; the first
		// anchor is usually the company profile link.
		s.Find("a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
			if h, ok := link.Attr("href"); ok && strings.Contains(h, "/remote-jobs/") {
				href = h
				return false
			}
			return true
		})

		postings = append(postings, model.RawPosting{
			Title:    title,
			Company:  company,
			Location: region,
			URL:      resolveURL(wwrBaseURL, href),
			Source:   a.Name(),
		})
	})

	return postings, nil
}

// resolveURL makes scraped hrefs absolute.
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + href
}
