package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause running watchers",
	Long: `Set the watch-paused flag. Running watchers drop stylesheet changes until
"sasswatch resume" is run. The flag is cleared automatically once it is older
than gate.stale_after.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAppFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.gate.PauseWatch(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Watching paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume paused watchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAppFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.gate.ResumeWatch(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Watching resumed")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the compile gate and the last compile pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAppFromCmd(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		return printStatus(cmd.Context(), a, a.out)
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}

// printStatus writes the gate flags and, when history is enabled, the most
// recent pass.
func printStatus(ctx context.Context, a *app, w io.Writer) error {
	st := a.gate.Status()

	fmt.Fprintf(w, "Gate directory: %s\n", a.gate.Dir())
	fmt.Fprintf(w, "Watching:       %s\n", flagState(st.Paused, "paused", "active", st.PausedSince))
	fmt.Fprintf(w, "Compiling:      %s\n", flagState(st.Compiling, "yes", "no", st.CompilingSince))

	if a.history == nil {
		return nil
	}
	last, err := a.history.Last(ctx)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if last == nil {
		fmt.Fprintln(w, "Last pass:      none recorded")
		return nil
	}
	fmt.Fprintf(w, "Last pass:      %s (%s ago), %d compiled, %d failed\n",
		last.StartedAt.Local().Format(time.DateTime),
		time.Since(last.FinishedAt).Round(time.Second),
		last.Compiled, last.Failed)
	if last.Aborted {
		fmt.Fprintf(w, "                aborted: %s\n", last.Error)
	}
	return nil
}

func flagState(set bool, on, off string, since time.Time) string {
	if !set {
		return off
	}
	return fmt.Sprintf("%s since %s", on, since.Local().Format(time.DateTime))
}
