package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// ProviderRateLimiter enforces a minimum delay between requests to the same
// provider, with optional per-provider overrides of the default delay.
type ProviderRateLimiter struct {
	mu        sync.Mutex
	lastCall  map[string]time.Time // key: provider name
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewProviderRateLimiter creates a rate limiter that enforces minDelay
// between consecutive requests to the same provider. overrides may be nil.
func NewProviderRateLimiter(minDelay time.Duration, overrides map[string]time.Duration) *ProviderRateLimiter {
	return &ProviderRateLimiter{
		lastCall:  make(map[string]time.Time),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

func (r *ProviderRateLimiter) delayFor(provider string) time.Duration {
	if d, ok := r.overrides[provider]; ok {
		return d
	}
	return r.minDelay
}

// Wait blocks until enough time has passed since the last request to the
// given provider. Returns an error if the context is cancelled while waiting.
func (r *ProviderRateLimiter) Wait(ctx context.Context, provider string) error {
	minDelay := r.delayFor(provider)

	r.mu.Lock()
	last, ok := r.lastCall[provider]
	now := time.Now()

	if !ok {
		// First request for this provider — no wait needed.
		r.lastCall[provider] = now
		r.mu.Unlock()
		return nil
	}

	elapsed := now.Sub(last)
	if elapsed >= minDelay {
		// Enough time has passed — proceed immediately.
		r.lastCall[provider] = now
		r.mu.Unlock()
		return nil
	}

	// Need to wait for the remainder.
	remaining := minDelay - elapsed
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", provider, ctx.Err())
	case <-time.After(remaining):
	}

	// Record the actual time after waiting.
	r.mu.Lock()
	r.lastCall[provider] = time.Now()
	r.mu.Unlock()

	return nil
}

// Source is a decorator that enforces provider-level rate limiting before
// delegating to the wrapped SourceAdapter. All adapters for the same
// provider should share the same limiter instance.
type Source struct {
	inner   model.SourceAdapter
	limiter *ProviderRateLimiter
}

// NewSource wraps a SourceAdapter with provider-level rate limiting.
func NewSource(inner model.SourceAdapter, limiter *ProviderRateLimiter) *Source {
	return &Source{inner: inner, limiter: limiter}
}

func (s *Source) Name() string { return s.inner.Name() }

// Fetch waits for the rate limiter to allow a request, then delegates to
// the wrapped adapter.
func (s *Source) Fetch(ctx context.Context, q model.Query) ([]model.RawPosting, error) {
	if err := s.limiter.Wait(ctx, s.inner.Name()); err != nil {
		return nil, err
	}
	return s.inner.Fetch(ctx, q)
}
