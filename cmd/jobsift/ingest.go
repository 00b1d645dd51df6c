package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/config"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/store"
)

var (
	ingestUser   string
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion, print stats, exit",
	Long:  "One-shot ingestion for every configured search (or a single user with --user). With --dry-run nothing is persisted.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUser, "user", "", "ingest only for this user_id")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "fetch and dedup but do not persist")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	searches := cfg.Searches
	if ingestUser != "" {
		searches = nil
		for _, s := range cfg.Searches {
			if s.UserID == ingestUser {
				searches = []config.SearchConfig{s}
				break
			}
		}
		if searches == nil {
			logger.Error("no configured search for user", "user", ingestUser)
			os.Exit(1)
		}
	}

	var jobStore model.JobStore
	if ingestDryRun {
		logger.Info("dry run: nothing will be persisted")
		jobStore = store.NewNopStore()
	} else {
		sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			os.Exit(1)
		}
		defer sqlStore.Close()
		jobStore = sqlStore
	}

	pipeline := buildPipeline(cfg, jobStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, search := range searches {
		stats, err := pipeline.Run(ctx, search.UserID, model.Query{
			Skills:    search.Skills,
			Locations: search.Locations,
		})
		if err != nil {
			logger.Error("ingestion failed", "user", search.UserID, "error", err)
			os.Exit(1)
		}
		printStats(search.UserID, stats)
	}

	return nil
}

func printStats(userID string, stats model.IngestionStats) {
	fmt.Printf("\n%s\n", userID)
	fmt.Printf("  fetched:                 %d\n", stats.Fetched)
	fmt.Printf("  dropped:                 %d\n", stats.Dropped)
	fmt.Printf("  cross-source duplicates: %d\n", stats.CrossSourceDuplicates)
	fmt.Printf("  persisted duplicates:    %d\n", stats.PersistedDuplicates)
	fmt.Printf("  new jobs:                %d\n", stats.NewJobs)

	names := make([]string, 0, len(stats.PerSource))
	for name := range stats.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := stats.PerSource[name]
		fmt.Printf("    %-16s fetched=%d new=%d\n", name, s.Fetched, s.NewJobs)
	}

	for _, f := range stats.Failures {
		fmt.Printf("  FAILED %s: %s\n", f.Source, f.Reason)
	}
}
