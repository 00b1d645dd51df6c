package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jobsift/jobsift/internal/model"
)

// SQLiteStore persists canonical Job records in a SQLite database. Per-user
// uniqueness on fingerprint and on canonical URL is enforced by partial
// unique indexes; violations surface as model.ErrDuplicateJob so a race
// between concurrent runs for the same user degrades to a benign duplicate.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the jobs table and its uniqueness indexes exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			title       TEXT NOT NULL,
			company     TEXT NOT NULL,
			location    TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			fingerprint TEXT NOT NULL DEFAULT '',
			source      TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'new',
			notes       TEXT NOT NULL DEFAULT '',
			first_seen  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// Partial indexes: legacy rows without a fingerprint (backfill
		// targets) and postings without a URL must not collide with each other.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_user_fingerprint
			ON jobs(user_id, fingerprint) WHERE fingerprint != ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_user_url
			ON jobs(user_id, url) WHERE url != ''`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_user_first_seen
			ON jobs(user_id, first_seen)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating jobs schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

const jobColumns = "id, user_id, title, company, location, url, fingerprint, source, status, notes, first_seen"

// FindPostingsSince returns the user's jobs first seen at or after cutoff,
// oldest first. This is the persisted-dedup corpus: one consistent snapshot
// taken at the start of a run.
func (s *SQLiteStore) FindPostingsSince(ctx context.Context, userID string, cutoff time.Time) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE user_id = ? AND first_seen >= ? ORDER BY first_seen",
		userID, cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying postings for %s: %w", userID, err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// InsertJob writes a new Job row for the user and returns its id. A
// uniqueness-constraint violation is reported as model.ErrDuplicateJob.
// Inserts are additive only; the pipeline never updates existing rows.
func (s *SQLiteStore) InsertJob(ctx context.Context, userID string, p model.NormalizedPosting, fingerprint string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, user_id, title, company, location, url, fingerprint, source, first_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, p.Title, p.Company, p.Location, p.URL, fingerprint, p.Source, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", model.ErrDuplicateJob
		}
		return "", fmt.Errorf("inserting job for %s: %w", userID, err)
	}
	return id, nil
}

// MissingFingerprints returns up to limit jobs without a fingerprint,
// skipping the first offset rows. Offset paging exists for dry-run backfill,
// where processed rows keep matching the predicate.
func (s *SQLiteStore) MissingFingerprints(ctx context.Context, limit, offset int) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE fingerprint = '' ORDER BY first_seen LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying jobs without fingerprint: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// SetFingerprint writes a computed fingerprint onto an existing row.
// Only the backfill tool calls this; steady-state ingestion sets the
// fingerprint at insert time and never recomputes it.
func (s *SQLiteStore) SetFingerprint(ctx context.Context, jobID, fingerprint string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET fingerprint = ? WHERE id = ? AND fingerprint = ''",
		fingerprint, jobID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateJob
		}
		return fmt.Errorf("setting fingerprint on %s: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s not found or already fingerprinted", jobID)
	}
	return nil
}

// RecentJobs returns the user's most recently ingested jobs, newest first.
func (s *SQLiteStore) RecentJobs(ctx context.Context, userID string, limit int) ([]model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE user_id = ? ORDER BY first_seen DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent jobs for %s: %w", userID, err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanJobs(rows *sql.Rows) ([]model.Job, error) {
	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(
			&j.ID, &j.UserID, &j.Title, &j.Company, &j.Location,
			&j.URL, &j.Fingerprint, &j.Source, &j.Status, &j.Notes, &j.FirstSeen,
		); err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// isUniqueViolation detects a SQLite uniqueness-constraint error. The
// modernc driver exposes no typed constraint error, so the message is the
// stable surface to match on.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
