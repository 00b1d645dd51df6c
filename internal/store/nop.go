package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jobsift/jobsift/internal/model"
)

// NopStore is a no-op store used in dry-run mode. It persists nothing and
// exposes an empty corpus, so every candidate appears novel on each run.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) FindPostingsSince(_ context.Context, _ string, _ time.Time) ([]model.Job, error) {
	return nil, nil
}

func (s *NopStore) InsertJob(_ context.Context, _ string, _ model.NormalizedPosting, _ string) (string, error) {
	return uuid.NewString(), nil
}
