package main

import (
	"fmt"

	"bitrevert/internal/audit"
	"bitrevert/internal/image"
	"bitrevert/internal/report"

	"github.com/spf13/cobra"
)

var (
	historyAudit    string
	historyLimit    int
	historyRun      string
	historySnapshot int
	historyOut      string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded reconstruction runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := audit.Open(historyAudit)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if historyRun == "" {
			runs, err := store.Runs(ctx, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.History(runs))
			return nil
		}

		if historySnapshot > 0 {
			img, err := store.Snapshot(ctx, historyRun, historySnapshot-1)
			if err != nil {
				return err
			}
			if err := image.Save(img, historyOut); err != nil {
				return err
			}
			fmt.Fprintf(out, "stage %d snapshot written to %s\n", historySnapshot, historyOut)
			return nil
		}

		stages, err := store.Stages(ctx, historyRun)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "run %s\n%s\n", historyRun, report.RunStages(stages))
		return nil
	},
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyAudit, "audit", "", "SQLite audit database")
	f.IntVar(&historyLimit, "limit", 20, "number of runs to list")
	f.StringVar(&historyRun, "run", "", "show the stages of one run")
	f.IntVar(&historySnapshot, "snapshot", 0, "with --run, export the snapshot of this stage (1-based)")
	f.StringVar(&historyOut, "snapshot-out", "snapshot.bmp", "file for --snapshot")
	historyCmd.MarkFlagRequired("audit")
	rootCmd.AddCommand(historyCmd)
}
