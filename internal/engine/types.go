package engine

import (
	"time"

	"github.com/google/uuid"
)

// Options controls a single compile pass.
type Options struct {
	// ContinueOnError skips files that fail and keeps going. When false the
	// first failure aborts the pass.
	ContinueOnError bool

	// Verbose echoes per-file outcomes to the interactive output instead of
	// routing failures to the logger.
	Verbose bool
}

// Conventions names the files the engine looks for.
type Conventions struct {
	Extension       string // Source extension including the dot
	TargetExtension string // Output extension including the dot
	Sentinel        string // Per-directory config file name
	PartialPrefix   string // Files starting with this are never compiled standalone

	// LiteralRename replaces every occurrence of the bare source extension
	// text in the file name, as older tooling did ("my-scss-lib.scss" becomes
	// "my-css-lib.css"). When false only the trailing extension is replaced.
	LiteralRename bool
}

// DefaultConventions returns the SCSS naming conventions.
func DefaultConventions() Conventions {
	return Conventions{
		Extension:       ".scss",
		TargetExtension: ".css",
		Sentinel:        "libsass.ini",
		PartialPrefix:   "_",
	}
}

// FileResult is the outcome of compiling one source file.
type FileResult struct {
	Source   string
	Target   string        // Empty if the pass failed before resolving it
	Err      error         // Nil on success
	Duration time.Duration
}

// OK reports whether the file was written.
func (r FileResult) OK() bool {
	return r.Err == nil
}

// Report aggregates the outcome of one compile pass.
type Report struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []FileResult
	Err        error // Set when the pass was aborted
}

func newReport(now time.Time) *Report {
	return &Report{
		ID:        uuid.NewString(),
		StartedAt: now,
	}
}

// Compiled returns the number of files written.
func (r *Report) Compiled() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Failed returns the results that did not produce output.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Aborted reports whether the pass stopped before visiting every file.
func (r *Report) Aborted() bool {
	return r.Err != nil
}

// Duration returns how long the pass took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
