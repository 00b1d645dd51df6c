package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobsift/jobsift/internal/scheduler"
	"github.com/jobsift/jobsift/internal/store"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion daemon",
	Long:  "Start the scheduled ingestion daemon; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	spec := cfg.Schedule
	if spec == "" {
		spec = "@daily"
	}

	logger.Info("config loaded",
		"schedule", spec,
		"db_path", cfg.DBPath,
		"lookback", cfg.Lookback.String(),
		"searches", len(cfg.Searches),
	)

	sqlStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	pipeline := buildPipeline(cfg, sqlStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(pipeline, cfg.Searches, spec, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	sched.Stop()

	logger.Info("goodbye")
	return nil
}
