package cli

import (
	"context"
	"fmt"

	"github.com/mvp-joe/sasswatch/internal/engine"
	"github.com/mvp-joe/sasswatch/internal/watcher"
	"github.com/spf13/cobra"
)

// DefaultWatchFolders are watched when --folders is not given.
const DefaultWatchFolders = "themes"

var (
	watchFolders string
	watchTTL     string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recompile stylesheets when they change",
	Long: `Watch the given folders and run a full compile pass after stylesheet changes.

Changes made while the gate is paused (see "sasswatch pause") are dropped and
do not trigger a pass. Changes seen while another process is compiling are kept
pending, and the pass runs once that compile finishes. The watch stops after
--ttl minutes, or never with --ttl "*".`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchFolders, "folders", DefaultWatchFolders, "comma separated source folders")
	watchCmd.Flags().StringVar(&watchTTL, "ttl", "", `minutes to watch, or "*" for no limit (default from config)`)
}

// watchOptions are the resolved inputs of one watch invocation.
type watchOptions struct {
	base    string
	folders []string
	ttl     string
	verbose bool
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = watchWith(cmd.Context(), a, watchOptions{
		base:    rootDir,
		folders: ParseFolders(watchFolders),
		ttl:     watchTTL,
		verbose: verbose,
	})
	return err
}

// watchWith runs the watch loop until it stops. An empty ttl falls back to
// the configured default.
func watchWith(ctx context.Context, a *app, opts watchOptions) (watcher.StopReason, error) {
	if opts.ttl == "" {
		opts.ttl = a.cfg.Watch.TTL
	}
	ttl, err := watcher.ParseTTL(opts.ttl)
	if err != nil {
		return watcher.StopFailed, err
	}

	eng, err := a.newEngine(opts.base, opts.folders)
	if err != nil {
		return watcher.StopFailed, err
	}

	w := watcher.New(eng, eng.Gate(),
		watcher.WithLogger(a.logger),
		watcher.WithPollInterval(a.cfg.Watch.PollInterval),
		watcher.WithBufferSize(a.cfg.Watch.Buffer),
		watcher.WithExtension(a.cfg.Sources.Extension),
		watcher.WithCompileOptions(engine.Options{ContinueOnError: true, Verbose: opts.verbose}),
	)

	reason, err := w.Run(ctx, ttl)
	if err != nil {
		return reason, fmt.Errorf("watch failed: %w", err)
	}
	if reason != watcher.StopNoSources {
		fmt.Fprintf(a.out, "Stopped watching: %s\n", reason)
	}
	return reason, nil
}
