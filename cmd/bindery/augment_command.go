package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newAugmentCommand(cctx *commandContext) *cobra.Command {
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "augment",
		Short: "Run only the metadata augmentation stage",
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
				stats, err := runAugmentStage(ctx, cfg, store, logger, limitFlag)
				if err != nil {
					return err
				}
				printAugmentStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Cap the number of books augmented")
	return cmd
}
