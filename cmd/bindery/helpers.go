package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bindery/internal/augment"
	"bindery/internal/config"
	"bindery/internal/docstore"
	"bindery/internal/etl"
	"bindery/internal/runlock"
)

// withRunLock guards a store-mutating command with the single-instance lock
// and a signal-cancelled context.
func withRunLock(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context) error) error {
	lock, err := runlock.New(cfg.Paths.LogDir)
	if err != nil {
		return err
	}
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx)
}

func runETLStage(ctx context.Context, cfg *config.Config, store *docstore.Store, logger *slog.Logger, mappingOverride string, sampleOverride int) (*etl.RunStats, error) {
	mappingPath := cfg.ETL.MappingPath
	if mappingOverride != "" {
		expanded, err := config.ExpandPath(mappingOverride)
		if err != nil {
			return nil, err
		}
		mappingPath = expanded
	}
	sample := cfg.ETL.SampleRows
	if sampleOverride > 0 {
		sample = sampleOverride
	}

	runner := etl.NewRunner(store, etl.Options{
		MappingPath:  mappingPath,
		DataDir:      cfg.Paths.DataDir,
		SampleRows:   sample,
		BatchSize:    cfg.ETL.DefaultBatchSize,
		WriteRetries: cfg.ETL.WriteRetries,
	}, logger)
	return runner.Run(ctx)
}

func runAugmentStage(ctx context.Context, cfg *config.Config, store *docstore.Store, logger *slog.Logger, limitOverride int) (*augment.Stats, error) {
	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, err
	}
	limit := cfg.Augment.BookLimit
	if limitOverride > 0 {
		limit = limitOverride
	}
	orch := augment.New(store, providers, augment.Options{
		Concurrency:   cfg.Augment.Concurrency,
		BookLimit:     limit,
		RetryAttempts: cfg.Augment.RetryAttempts,
		CallTimeout:   time.Duration(cfg.Augment.ProviderTimeoutSeconds) * time.Second,
	}, logger)
	return orch.Run(ctx)
}

func printETLStats(out io.Writer, stats *etl.RunStats) {
	fmt.Fprintf(out, "Loaded %d sources (%d rows) in %s\n",
		stats.Sources, stats.Rows, stats.Elapsed.Round(time.Millisecond))

	rows := make([][]string, 0, len(stats.Targets))
	for _, target := range stats.Targets {
		rows = append(rows, []string{
			target.Collection,
			strconv.Itoa(target.Mapped),
			strconv.Itoa(target.Written),
			strconv.Itoa(target.Skipped),
			strconv.Itoa(target.Dropped + target.NoKey),
			strconv.Itoa(target.Fallbacks),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Collection", "Mapped", "Written", "Skipped", "Dropped", "Defaulted"},
		rows, 2, 3, 4, 5, 6))
}

func printAugmentStats(out io.Writer, stats *augment.Stats) {
	rows := [][]string{{
		strconv.Itoa(stats.Selected),
		strconv.Itoa(stats.Merged),
		strconv.Itoa(stats.Exhausted),
		strconv.Itoa(stats.Pending),
		strconv.Itoa(stats.Attempts),
	}}
	fmt.Fprintln(out, renderTable(
		[]string{"Selected", "Merged", "Exhausted", "Pending", "Attempts"},
		rows, 1, 2, 3, 4, 5))
}
