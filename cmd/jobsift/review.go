package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/review"
	"github.com/jobsift/jobsift/internal/store"
)

var (
	reviewUser  string
	reviewLimit int
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Browse a user's ingested jobs in the terminal",
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewUser, "user", "", "user_id to browse (required)")
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 200, "max jobs to load")
	reviewCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	jobs, err := sqlStore.RecentJobs(context.Background(), reviewUser, reviewLimit)
	if err != nil {
		logger.Error("failed to load jobs", "error", err)
		os.Exit(1)
	}

	return review.Run(reviewUser, jobs)
}
