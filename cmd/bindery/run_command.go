package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var mappingFlag string
	var sampleFlag int
	var limitFlag int
	var skipAugment bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: ETL ingest, then metadata augmentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cctx.configValue()
			logger, err := cctx.buildLogger()
			if err != nil {
				return err
			}
			store, err := cctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return withRunLock(cmd, cfg, func(ctx context.Context) error {
				out := cmd.OutOrStdout()

				etlStats, err := runETLStage(ctx, cfg, store, logger, mappingFlag, sampleFlag)
				if err != nil {
					return fmt.Errorf("etl stage: %w", err)
				}
				printETLStats(out, etlStats)

				if skipAugment {
					return nil
				}
				augmentStats, err := runAugmentStage(ctx, cfg, store, logger, limitFlag)
				if err != nil {
					return fmt.Errorf("augment stage: %w", err)
				}
				printAugmentStats(out, augmentStats)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mappingFlag, "mapping", "", "Override the ETL mapping config path")
	cmd.Flags().IntVar(&sampleFlag, "sample", 0, "Cap rows read per source")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Cap the number of books augmented")
	cmd.Flags().BoolVar(&skipAugment, "skip-augment", false, "Stop after the ETL stage")
	return cmd
}
