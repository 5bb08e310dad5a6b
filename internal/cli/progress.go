package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/mvp-joe/sasswatch/internal/engine"
	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter draws a progress bar for a compile pass.
type CLIProgressReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

var _ engine.ProgressReporter = (*CLIProgressReporter)(nil)

// NewCLIProgressReporter creates a reporter that draws on w.
func NewCLIProgressReporter(w io.Writer) *CLIProgressReporter {
	return &CLIProgressReporter{w: w}
}

func (c *CLIProgressReporter) OnPassStart(total int) {
	c.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription("Compiling stylesheets"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.w)
		}),
	)
}

func (c *CLIProgressReporter) OnFileCompiled(res engine.FileResult) {
	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnFileFailed(res engine.FileResult) {
	if c.bar != nil {
		c.bar.Add(1)
	}
}

func (c *CLIProgressReporter) OnPassComplete(report *engine.Report) {
	if c.bar == nil {
		return
	}
	if report.Aborted() {
		c.bar.Exit()
		fmt.Fprintln(c.w)
	} else {
		c.bar.Finish()
	}
	c.bar = nil
}

// printSummary writes the one-line outcome of a pass.
func printSummary(w io.Writer, report *engine.Report) {
	failed := len(report.Failed())
	switch {
	case report.Aborted():
		fmt.Fprintf(w, "✗ Compilation aborted after %d file(s) (%d failed) in %.1fs\n",
			len(report.Results), failed, report.Duration().Seconds())
	case failed > 0:
		fmt.Fprintf(w, "✓ Compiled %d file(s), %d failed in %.1fs\n",
			report.Compiled(), failed, report.Duration().Seconds())
	default:
		fmt.Fprintf(w, "✓ Compiled %d file(s) in %.1fs\n",
			report.Compiled(), report.Duration().Seconds())
	}
}
