package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/backfill"
	"github.com/jobsift/jobsift/internal/store"
)

var (
	backfillDryRun    bool
	backfillBatchSize int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute fingerprints for jobs persisted before fingerprinting",
	Long:  "Walk jobs with an empty fingerprint and fill it from the stored fields. Safe to re-run; --dry-run prints what would change.",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "report without writing")
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 500, "rows per batch")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := backfill.New(sqlStore, backfillBatchSize, backfillDryRun, logger)
	res, err := runner.Run(ctx)
	if err != nil {
		logger.Error("backfill failed", "error", err)
		os.Exit(1)
	}

	verb := "updated"
	if backfillDryRun {
		verb = "would update"
	}
	fmt.Printf("%s %d, skipped %d, errored %d\n", verb, res.Updated, res.Skipped, res.Errored)
	return nil
}
