package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the jobsift ingester.
type Config struct {
	Schedule      string // cron spec for the daemon, e.g. "0 7 * * *"
	DBPath        string
	Lookback      time.Duration // persisted-dedup window
	FetchTimeout  time.Duration // per-source fetch timeout
	MaxConcurrent int           // simultaneous source fetches
	Dedup         DedupConfig
	RateLimit     RateLimitConfig
	Retry         RetryConfig
	Sources       SourcesConfig
	Searches      []SearchConfig
}

// DedupConfig holds the fuzzy-match similarity thresholds, each in [0, 1].
type DedupConfig struct {
	CompanyThreshold  float64
	TitleThreshold    float64
	LocationThreshold float64
}

// RateLimitConfig controls provider-level rate limiting.
type RateLimitConfig struct {
	MinDelay        time.Duration            // minimum gap between requests to the same provider
	SourceOverrides map[string]time.Duration // per-provider overrides, keyed by source name
}

// MinDelayFor returns the configured delay for the given source, falling back to MinDelay.
func (r RateLimitConfig) MinDelayFor(source string) time.Duration {
	if d, ok := r.SourceOverrides[source]; ok {
		return d
	}
	return r.MinDelay
}

// RetryConfig controls transient-failure retries on source fetches.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// SourcesConfig describes every provider the ingester can pull from.
type SourcesConfig struct {
	Greenhouse     []BoardConfig `yaml:"greenhouse"`
	Lever          []BoardConfig `yaml:"lever"`
	Adzuna         AdzunaConfig  `yaml:"adzuna"`
	Remotive       ToggleConfig  `yaml:"remotive"`
	WeWorkRemotely ToggleConfig  `yaml:"weworkremotely"`
}

// BoardConfig is a single ATS-hosted company board.
type BoardConfig struct {
	Company string `yaml:"company"`
	Token   string `yaml:"token"`
	Enabled bool   `yaml:"enabled"`
}

// AdzunaConfig holds Adzuna API credentials.
type AdzunaConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppID   string `yaml:"app_id"`  // expanded from env var by Load
	AppKey  string `yaml:"app_key"` // expanded from env var by Load
	Country string `yaml:"country"` // lowercase ISO code, e.g. "gb"
}

// ToggleConfig enables a provider that needs no credentials.
type ToggleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SearchConfig is one user's standing search, run on every ingestion.
type SearchConfig struct {
	UserID    string   `yaml:"user_id"`
	Skills    []string `yaml:"skills"`
	Locations []string `yaml:"locations"`
}

const (
	defaultLookbackDays  = 30
	defaultFetchTimeout  = 30 * time.Second
	defaultMaxConcurrent = 4
	defaultMinDelay      = 2 * time.Second
	defaultMaxRetries    = 3
	defaultBaseDelay     = 2 * time.Second

	defaultCompanyThreshold  = 0.80
	defaultTitleThreshold    = 0.85
	defaultLocationThreshold = 0.60
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Schedule      string             `yaml:"schedule"`
	DBPath        string             `yaml:"db_path"`
	LookbackDays  int                `yaml:"lookback_days"`
	FetchTimeout  string             `yaml:"fetch_timeout"`
	MaxConcurrent int                `yaml:"max_concurrent_fetches"`
	Dedup         rawDedupConfig     `yaml:"dedup"`
	RateLimit     rawRateLimitConfig `yaml:"rate_limit"`
	Retry         rawRetryConfig     `yaml:"retry"`
	Sources       SourcesConfig      `yaml:"sources"`
	Searches      []SearchConfig     `yaml:"searches"`
}

type rawDedupConfig struct {
	CompanyThreshold  *float64 `yaml:"company_threshold"`
	TitleThreshold    *float64 `yaml:"title_threshold"`
	LocationThreshold *float64 `yaml:"location_threshold"`
}

type rawRateLimitConfig struct {
	MinDelay        string            `yaml:"min_delay"`
	SourceOverrides map[string]string `yaml:"source_overrides"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	lookbackDays := defaultLookbackDays
	if raw.LookbackDays != 0 {
		lookbackDays = raw.LookbackDays
	}

	fetchTimeout := defaultFetchTimeout
	if raw.FetchTimeout != "" {
		fetchTimeout, err = time.ParseDuration(raw.FetchTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse fetch_timeout %q: %w", raw.FetchTimeout, err)
		}
	}

	maxConcurrent := defaultMaxConcurrent
	if raw.MaxConcurrent != 0 {
		maxConcurrent = raw.MaxConcurrent
	}

	minDelay := defaultMinDelay
	if raw.RateLimit.MinDelay != "" {
		minDelay, err = time.ParseDuration(raw.RateLimit.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.min_delay %q: %w", raw.RateLimit.MinDelay, err)
		}
	}

	overrides := make(map[string]time.Duration)
	for source, rawDelay := range raw.RateLimit.SourceOverrides {
		d, err := time.ParseDuration(rawDelay)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.source_overrides[%q]: %w", source, err)
		}
		overrides[source] = d
	}

	maxRetries := defaultMaxRetries
	if raw.Retry.MaxRetries != nil {
		maxRetries = *raw.Retry.MaxRetries
	}

	baseDelay := defaultBaseDelay
	if raw.Retry.BaseDelay != "" {
		baseDelay, err = time.ParseDuration(raw.Retry.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("parse retry.base_delay %q: %w", raw.Retry.BaseDelay, err)
		}
	}

	cfg := &Config{
		Schedule:      raw.Schedule,
		DBPath:        raw.DBPath,
		Lookback:      time.Duration(lookbackDays) * 24 * time.Hour,
		FetchTimeout:  fetchTimeout,
		MaxConcurrent: maxConcurrent,
		Dedup: DedupConfig{
			CompanyThreshold:  floatOrDefault(raw.Dedup.CompanyThreshold, defaultCompanyThreshold),
			TitleThreshold:    floatOrDefault(raw.Dedup.TitleThreshold, defaultTitleThreshold),
			LocationThreshold: floatOrDefault(raw.Dedup.LocationThreshold, defaultLocationThreshold),
		},
		RateLimit: RateLimitConfig{
			MinDelay:        minDelay,
			SourceOverrides: overrides,
		},
		Retry: RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  baseDelay,
		},
		Sources:  raw.Sources,
		Searches: raw.Searches,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func floatOrDefault(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if cfg.Lookback <= 0 {
		return fmt.Errorf("lookback_days must be positive, got %v", cfg.Lookback)
	}
	if cfg.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent_fetches must be positive, got %d", cfg.MaxConcurrent)
	}

	for _, f := range []struct {
		name string
		v    float64
	}{
		{"dedup.company_threshold", cfg.Dedup.CompanyThreshold},
		{"dedup.title_threshold", cfg.Dedup.TitleThreshold},
		{"dedup.location_threshold", cfg.Dedup.LocationThreshold},
	} {
		if f.v <= 0 || f.v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %v", f.name, f.v)
		}
	}

	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}

	for _, b := range cfg.Sources.Greenhouse {
		if b.Enabled && b.Token == "" {
			return fmt.Errorf("sources.greenhouse: enabled board %q has no token", b.Company)
		}
	}
	for _, b := range cfg.Sources.Lever {
		if b.Enabled && b.Token == "" {
			return fmt.Errorf("sources.lever: enabled board %q has no token", b.Company)
		}
	}
	if a := cfg.Sources.Adzuna; a.Enabled {
		if a.AppID == "" || a.AppKey == "" {
			return fmt.Errorf("sources.adzuna: app_id and app_key are required when enabled")
		}
		if a.Country == "" {
			return fmt.Errorf("sources.adzuna: country is required when enabled")
		}
	}

	if len(cfg.Searches) == 0 {
		return fmt.Errorf("at least one search must be configured")
	}
	seen := make(map[string]bool)
	for i, s := range cfg.Searches {
		if s.UserID == "" {
			return fmt.Errorf("searches[%d]: user_id is required", i)
		}
		if seen[s.UserID] {
			return fmt.Errorf("searches[%d]: duplicate user_id %q", i, s.UserID)
		}
		seen[s.UserID] = true
	}

	return nil
}
