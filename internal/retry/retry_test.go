package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

type flakySource struct {
	failures int // fail this many times before succeeding
	calls    int
	err      error
}

func (f *flakySource) Name() string { return "flaky" }

func (f *flakySource) Fetch(_ context.Context, _ model.Query) ([]model.RawPosting, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return []model.RawPosting{{Title: "Engineer", Company: "Acme", Source: "flaky"}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetch_SucceedsAfterTransientError(t *testing.T) {
	inner := &flakySource{failures: 1, err: errors.New("connection reset")}
	s := NewSource(inner, 2, time.Millisecond, discardLogger())

	postings, err := s.Fetch(context.Background(), model.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(postings))
	}
	if inner.calls != 2 {
		t.Errorf("calls = %d, want 2", inner.calls)
	}
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	inner := &flakySource{failures: 10, err: errors.New("connection reset")}
	s := NewSource(inner, 2, time.Millisecond, discardLogger())

	if _, err := s.Fetch(context.Background(), model.Query{}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", inner.calls)
	}
}

func TestFetch_NonRetryableClientError(t *testing.T) {
	inner := &flakySource{failures: 10, err: &model.HTTPError{StatusCode: 404}}
	s := NewSource(inner, 2, time.Millisecond, discardLogger())

	if _, err := s.Fetch(context.Background(), model.Query{}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (404 must not be retried)", inner.calls)
	}
}

func TestFetch_RateLimitRespectsRetryAfter(t *testing.T) {
	inner := &flakySource{
		failures: 1,
		err:      &model.HTTPError{StatusCode: 429, RetryAfter: 20 * time.Millisecond},
	}
	s := NewSource(inner, 1, time.Millisecond, discardLogger())

	start := time.Now()
	if _, err := s.Fetch(context.Background(), model.Query{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed %v: expected Retry-After to override base delay", elapsed)
	}
}

func TestFetch_ContextCancelledNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakySource{failures: 10, err: ctx.Err()}
	s := NewSource(inner, 5, time.Millisecond, discardLogger())

	if _, err := s.Fetch(ctx, model.Query{}); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (cancellation must not be retried)", inner.calls)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain network error", errors.New("dial tcp: timeout"), true},
		{"429", &model.HTTPError{StatusCode: 429}, true},
		{"500", &model.HTTPError{StatusCode: 500}, true},
		{"503", &model.HTTPError{StatusCode: 503}, true},
		{"401", &model.HTTPError{StatusCode: 401}, false},
		{"404", &model.HTTPError{StatusCode: 404}, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryable(tc.err); got != tc.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
