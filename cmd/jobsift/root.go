package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/dedup"
	"github.com/jobsift/jobsift/internal/ingest"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/ratelimit"
	"github.com/jobsift/jobsift/internal/retry"
	"github.com/jobsift/jobsift/internal/source"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobsift",
	Short: "Multi-source job ingester with deduplication",
	Long:  "JobSift pulls job postings from boards and aggregators, collapses duplicates, and keeps one clean feed per user.",
	// Default to `start` so that `jobsift` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBSIFT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBSIFT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBSIFT_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildSources assembles the enabled source adapters, each wrapped with
// retries and provider rate limiting.
func buildSources(cfg *config.Config, logger *slog.Logger) []model.SourceAdapter {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	limiter := ratelimit.NewProviderRateLimiter(cfg.RateLimit.MinDelay, cfg.RateLimit.SourceOverrides)

	var adapters []model.SourceAdapter
	if boards := enabledBoards(cfg.Sources.Greenhouse); len(boards) > 0 {
		adapters = append(adapters, source.NewGreenhouseAdapter(boards, httpClient))
	}
	if boards := enabledBoards(cfg.Sources.Lever); len(boards) > 0 {
		adapters = append(adapters, source.NewLeverAdapter(boards, httpClient))
	}
	if a := cfg.Sources.Adzuna; a.Enabled {
		adapters = append(adapters, source.NewAdzunaAdapter(a.AppID, a.AppKey, a.Country, httpClient))
	}
	if cfg.Sources.Remotive.Enabled {
		adapters = append(adapters, source.NewRemotiveAdapter(httpClient))
	}
	if cfg.Sources.WeWorkRemotely.Enabled {
		adapters = append(adapters, source.NewWeWorkRemotelyAdapter(httpClient))
	}

	var sources []model.SourceAdapter
	for _, a := range adapters {
		decorated := retry.NewSource(a, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, logger)
		sources = append(sources, ratelimit.NewSource(decorated, limiter))
		logger.Info("registered source", "source", a.Name())
	}
	return sources
}

func enabledBoards(boards []config.BoardConfig) []source.Board {
	var out []source.Board
	for _, b := range boards {
		if b.Enabled {
			out = append(out, source.Board{Token: b.Token, Company: b.Company})
		}
	}
	return out
}

func buildPipeline(cfg *config.Config, store model.JobStore, logger *slog.Logger) *ingest.Pipeline {
	return ingest.New(buildSources(cfg, logger), store, ingest.Options{
		Thresholds: dedup.Thresholds{
			Company:  cfg.Dedup.CompanyThreshold,
			Title:    cfg.Dedup.TitleThreshold,
			Location: cfg.Dedup.LocationThreshold,
		},
		Lookback:      cfg.Lookback,
		FetchTimeout:  cfg.FetchTimeout,
		MaxConcurrent: cfg.MaxConcurrent,
	}, logger)
}
