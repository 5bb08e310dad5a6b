package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded compile passes",
	Long: `List the most recent compile passes. With a run ID, list the files that
failed in that pass.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAppFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			return printFailures(cmd.Context(), a, a.out, args[0])
		}
		return printHistory(cmd.Context(), a, a.out, historyLimit)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of passes to show (0 for all)")
}

var errHistoryDisabled = errors.New("compile history is disabled (history.enabled = false)")

func printHistory(ctx context.Context, a *app, w io.Writer, limit int) error {
	if a.history == nil {
		return errHistoryDisabled
	}
	runs, err := a.history.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No compile passes recorded")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-19s  %8s  %8s  %6s  %s\n", "ID", "STARTED", "DURATION", "COMPILED", "FAILED", "STATUS")
	for _, r := range runs {
		status := "ok"
		if r.Aborted {
			status = "aborted"
		}
		fmt.Fprintf(w, "%-36s  %-19s  %8s  %8d  %6d  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Duration().Round(time.Millisecond),
			r.Compiled, r.Failed, status)
	}
	return nil
}

func printFailures(ctx context.Context, a *app, w io.Writer, runID string) error {
	if a.history == nil {
		return errHistoryDisabled
	}
	failures, err := a.history.Failures(ctx, runID)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		fmt.Fprintf(w, "No failures recorded for %s\n", runID)
		return nil
	}
	for _, f := range failures {
		fmt.Fprintf(w, "%s\n  %s\n", f.Source, f.Error)
	}
	return nil
}
