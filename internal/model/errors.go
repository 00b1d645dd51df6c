package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateJob is returned by a JobStore when an insert hits the per-user
// uniqueness constraint on fingerprint or URL. The pipeline treats it as a
// benign "duplicate after all", not a failure.
var ErrDuplicateJob = errors.New("duplicate job")

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
