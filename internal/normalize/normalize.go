// Package normalize converts provider-shaped postings into their canonical
// form. Everything here is pure and deterministic: identical inputs always
// produce identical output, which is what keeps fingerprints stable across
// sources and re-scrapes.
package normalize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jobsift/jobsift/internal/model"
)

// Query parameters that identify a click, not a posting. Stripped during URL
// canonicalization so the same job reached via different campaigns compares
// equal.
var trackingParams = map[string]bool{
	"gclid":        true,
	"fbclid":       true,
	"msclkid":      true,
	"ref":          true,
	"referrer":     true,
	"gh_src":       true,
	"lever-origin": true,
	"lever-source": true,
}

// Posting canonicalizes a RawPosting. It returns an error when title or
// company is missing; callers drop such postings from the batch with a
// recorded reason.
func Posting(raw model.RawPosting) (model.NormalizedPosting, error) {
	title := Field(raw.Title)
	company := Field(raw.Company)

	if title == "" {
		return model.NormalizedPosting{}, fmt.Errorf("posting from %s has no title", raw.Source)
	}
	if company == "" {
		return model.NormalizedPosting{}, fmt.Errorf("posting %q from %s has no company", title, raw.Source)
	}

	return model.NormalizedPosting{
		Title:       title,
		Company:     company,
		Location:    Field(raw.Location),
		URL:         CanonicalURL(raw.URL),
		Description: raw.Description,
		Source:      raw.Source,
		Salary:      raw.Salary,
		Tags:        raw.Tags,
		PostedAt:    raw.PostedAt,
	}, nil
}

// Field trims, lower-cases, and collapses internal whitespace. Idempotent.
func Field(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// CanonicalURL lower-cases the scheme and host, strips tracking query
// parameters and the fragment, and trims the trailing slash. Path case is
// preserved since some job boards are case-sensitive in path segments.
// Unparseable URLs are returned trimmed but otherwise untouched.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	for param := range q {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}
