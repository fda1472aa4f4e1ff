package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newETLCommand(cctx *commandContext) *cobra.Command {
	var mappingFlag string
	var sampleFlag int

	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Run only the ETL ingest stage",
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
				stats, err := runETLStage(ctx, cfg, store, logger, mappingFlag, sampleFlag)
				if err != nil {
					return err
				}
				printETLStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mappingFlag, "mapping", "", "Override the ETL mapping config path")
	cmd.Flags().IntVar(&sampleFlag, "sample", 0, "Cap rows read per source")
	return cmd
}
