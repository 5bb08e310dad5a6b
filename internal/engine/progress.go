package engine

import "context"

// ProgressReporter observes a compile pass as it runs.
type ProgressReporter interface {
	// OnPassStart is called once the number of candidate files is known.
	OnPassStart(total int)

	// OnFileCompiled is called after a file's CSS has been written.
	OnFileCompiled(res FileResult)

	// OnFileFailed is called for every file that did not produce output.
	OnFileFailed(res FileResult)

	// OnPassComplete is called when the pass ends, aborted or not.
	OnPassComplete(report *Report)
}

// Recorder persists compile reports.
type Recorder interface {
	Record(ctx context.Context, report *Report) error
}

// NoOpProgressReporter ignores every callback.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) OnPassStart(total int)         {}
func (NoOpProgressReporter) OnFileCompiled(res FileResult) {}
func (NoOpProgressReporter) OnFileFailed(res FileResult)   {}
func (NoOpProgressReporter) OnPassComplete(report *Report) {}
