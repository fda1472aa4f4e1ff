package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	var attemptsFlag int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show document counts and recent augmentation activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			heading := fmt.Sprintf("Document store: %s", store.Path())
			if stdoutIsTerminal() {
				heading = "\x1b[1m" + heading + "\x1b[0m"
			}
			fmt.Fprintln(out, heading)

			collections, err := store.Collections(ctx)
			if err != nil {
				return err
			}
			if len(collections) == 0 {
				fmt.Fprintln(out, "No collections yet. Run `bindery etl` first.")
				return nil
			}

			rows := make([][]string, 0, len(collections))
			for _, collection := range collections {
				count, err := store.Count(ctx, collection)
				if err != nil {
					return err
				}
				rows = append(rows, []string{collection, strconv.FormatInt(count, 10)})
			}
			fmt.Fprintln(out, renderTable([]string{"Collection", "Documents"}, rows, 2))

			hasLog := false
			for _, collection := range collections {
				if collection == "augmentation_log" {
					hasLog = true
				}
			}
			if !hasLog {
				return nil
			}

			attempts, err := store.Recent(ctx, "augmentation_log", attemptsFlag)
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				return nil
			}
			attemptRows := make([][]string, 0, len(attempts))
			for _, attempt := range attempts {
				attemptRows = append(attemptRows, []string{
					stringOr(attempt.Fields["timestamp"], "-"),
					stringOr(attempt.Fields["book_id"], "-"),
					stringOr(attempt.Fields["provider"], "-"),
					stringOr(attempt.Fields["outcome"], "-"),
				})
			}
			fmt.Fprintln(out, "Recent augmentation attempts:")
			fmt.Fprintln(out, renderTable([]string{"Time", "Book", "Provider", "Outcome"}, attemptRows))
			return nil
		},
	}

	cmd.Flags().IntVar(&attemptsFlag, "attempts", 10, "Number of recent attempts to show")
	return cmd
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok && s != "" {
		return s
	}
	return fallback
}
