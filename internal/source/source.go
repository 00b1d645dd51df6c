// Package source contains one adapter per external job provider. Every
// adapter normalizes its provider's response into model.RawPosting and
// reports failures as errors; the orchestrator converts those into
// per-source failure records so no provider can abort a run.
package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// matchesQuery applies the search descriptor client-side, for providers
// whose API cannot do it server-side. Matching is case-insensitive
// substring; empty lists pass everything.
func matchesQuery(q model.Query, title, location string) bool {
	if len(q.Skills) > 0 && !containsAny(title, q.Skills) {
		return false
	}
	if len(q.Locations) > 0 && !containsAny(location, q.Locations) {
		return false
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
