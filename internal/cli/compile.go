package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/mvp-joe/sasswatch/internal/engine"
	"github.com/spf13/cobra"
)

// DefaultCompileFolders are compiled when --folders is not given.
const DefaultCompileFolders = "themes/custom,modules/custom,sites/default/files/styling_profiles"

var (
	compileFolders         string
	compileContinueOnError bool
	compileQuiet           bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile every stylesheet once",
	Long: `Compile every non-partial stylesheet under the given folders.

Folders are a comma separated list, optionally wrapped in braces. Folders that
do not exist are skipped. By default the first failing file aborts the pass
and the command exits non-zero; --continue-on-error reports failures and keeps
going.`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVar(&compileFolders, "folders", DefaultCompileFolders, "comma separated source folders")
	compileCmd.Flags().BoolVar(&compileContinueOnError, "continue-on-error", false, "skip files that fail to compile")
	compileCmd.Flags().BoolVarP(&compileQuiet, "quiet", "q", false, "suppress progress and summary output")
}

// compileOptions are the resolved inputs of one compile invocation.
type compileOptions struct {
	base            string
	folders         []string
	continueOnError bool
	verbose         bool
	quiet           bool
}

func runCompile(cmd *cobra.Command, args []string) error {
	a, err := newAppFromCmd(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = compileWith(cmd.Context(), a, cmd.ErrOrStderr(), compileOptions{
		base:            rootDir,
		folders:         ParseFolders(compileFolders),
		continueOnError: compileContinueOnError,
		verbose:         verbose,
		quiet:           compileQuiet,
	})
	return err
}

// compileWith runs one pass. The progress bar is drawn on progressOut unless
// the run is verbose or quiet. A nil report means nothing was compiled.
func compileWith(ctx context.Context, a *app, progressOut io.Writer, opts compileOptions) (*engine.Report, error) {
	var progress engine.ProgressReporter = engine.NoOpProgressReporter{}
	if !opts.verbose && !opts.quiet {
		progress = NewCLIProgressReporter(progressOut)
	}

	eng, err := a.newEngine(opts.base, opts.folders, engine.WithProgress(progress))
	if err != nil {
		return nil, err
	}
	if !eng.HasSources() {
		a.logger.Warn("no source folders found", "folders", opts.folders)
		return nil, nil
	}

	report, err := eng.Compile(ctx, engine.Options{
		ContinueOnError: opts.continueOnError,
		Verbose:         opts.verbose,
	})
	if report != nil && !opts.quiet {
		printSummary(a.out, report)
	}
	if err != nil {
		return report, fmt.Errorf("compilation aborted: %w", err)
	}
	return report, nil
}
