package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

func TestWait_FirstRequestProceedsImmediately(t *testing.T) {
	r := NewProviderRateLimiter(time.Hour, nil)

	start := time.Now()
	if err := r.Wait(context.Background(), "greenhouse"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("first request waited %v, expected no delay", elapsed)
	}
}

func TestWait_SecondRequestDelayed(t *testing.T) {
	r := NewProviderRateLimiter(50*time.Millisecond, nil)
	ctx := context.Background()

	if err := r.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	start := time.Now()
	if err := r.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second request waited only %v, expected ~50ms", elapsed)
	}
}

func TestWait_IndependentProviders(t *testing.T) {
	r := NewProviderRateLimiter(time.Hour, nil)
	ctx := context.Background()

	if err := r.Wait(ctx, "greenhouse"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	start := time.Now()
	if err := r.Wait(ctx, "lever"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("different provider waited %v, expected no delay", elapsed)
	}
}

func TestWait_ProviderOverride(t *testing.T) {
	r := NewProviderRateLimiter(time.Hour, map[string]time.Duration{"adzuna": 10 * time.Millisecond})
	ctx := context.Background()

	if err := r.Wait(ctx, "adzuna"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	start := time.Now()
	if err := r.Wait(ctx, "adzuna"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 5*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("override delay = %v, expected ~10ms", elapsed)
	}
}

func TestWait_CancelledWhileWaiting(t *testing.T) {
	r := NewProviderRateLimiter(time.Hour, nil)

	if err := r.Wait(context.Background(), "greenhouse"); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx, "greenhouse"); err == nil {
		t.Fatal("expected error when cancelled during wait")
	}
}

type countingSource struct {
	calls int
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) Fetch(_ context.Context, _ model.Query) ([]model.RawPosting, error) {
	c.calls++
	return nil, nil
}

func TestSource_DelegatesAfterWait(t *testing.T) {
	inner := &countingSource{}
	s := NewSource(inner, NewProviderRateLimiter(time.Millisecond, nil))

	if _, err := s.Fetch(context.Background(), model.Query{}); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if s.Name() != "counting" {
		t.Errorf("Name = %q, want inner name", s.Name())
	}
}
