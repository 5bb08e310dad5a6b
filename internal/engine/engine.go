// Package engine runs compile passes over a catalog of stylesheet sources.
//
// A pass discovers per-directory sentinel configuration, compiles every
// non-partial source file through the external compiler, resolves where the
// CSS goes and writes it. Passes are serialized through the compile gate so a
// watcher and a one-shot compile never overlap.
package engine

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/mvp-joe/sasswatch/internal/catalog"
	"github.com/mvp-joe/sasswatch/internal/compiler"
	"github.com/mvp-joe/sasswatch/internal/gate"
	"github.com/mvp-joe/sasswatch/internal/logging"
)

// Engine compiles the sources registered in its catalog.
type Engine struct {
	catalog     *catalog.Catalog
	compiler    compiler.Compiler
	gate        *gate.Gate
	hooks       *Hooks
	conventions Conventions
	ignore      []string

	logger   *slog.Logger
	out      io.Writer
	progress ProgressReporter
	recorder Recorder
	now      func() time.Time

	running atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger failures are routed to in non-verbose mode.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOutput sets the interactive output used in verbose mode.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(e *Engine) {
		e.progress = p
	}
}

// WithRecorder sets where finished reports are persisted.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithConventions overrides the file naming conventions.
func WithConventions(c Conventions) Option {
	return func(e *Engine) {
		e.conventions = c
	}
}

// WithIgnore excludes catalog entries matching the given globs.
func WithIgnore(patterns ...string) Option {
	return func(e *Engine) {
		e.ignore = append(e.ignore, patterns...)
	}
}

// New creates an engine. Markers left behind by a crashed process are
// cleared before New returns.
func New(cmp compiler.Compiler, g *gate.Gate, opts ...Option) (*Engine, error) {
	e := &Engine{
		compiler:    cmp,
		gate:        g,
		hooks:       &Hooks{},
		conventions: DefaultConventions(),
		logger:      logging.NewNop(),
		out:         os.Stdout,
		progress:    NoOpProgressReporter{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	cat, err := catalog.New(e.ignore...)
	if err != nil {
		return nil, fmt.Errorf("invalid ignore pattern: %w", err)
	}
	e.catalog = cat

	for _, name := range g.RecoverStale() {
		e.logger.Warn("recovered stale gate marker", "marker", name)
	}

	return e, nil
}

// AddSource registers a source directory. Paths that are not existing
// directories are ignored.
func (e *Engine) AddSource(path string) bool {
	ok := e.catalog.AddRoot(path)
	if !ok {
		e.logger.Debug("skipping source", "path", path)
	}
	return ok
}

// HasSources reports whether any registered source is present.
func (e *Engine) HasSources() bool {
	return e.catalog.HasSources()
}

// Sources returns a fresh traversal over every catalog entry.
func (e *Engine) Sources() iter.Seq[catalog.Entry] {
	return e.catalog.All()
}

// Ignored reports whether path is excluded by the ignore patterns.
func (e *Engine) Ignored(path string) bool {
	return e.catalog.Ignored(path)
}

// Roots returns the registered source directories.
func (e *Engine) Roots() []string {
	return e.catalog.Roots()
}

// Hooks returns the extension point registry.
func (e *Engine) Hooks() *Hooks {
	return e.hooks
}

// Conventions returns the naming conventions in use.
func (e *Engine) Conventions() Conventions {
	return e.conventions
}

// Gate returns the compile gate.
func (e *Engine) Gate() *gate.Gate {
	return e.gate
}

// Compile runs a full pass over every source.
//
// The gate is held for the whole pass and released on every return path.
// With opts.ContinueOnError a failing file is reported and skipped;
// otherwise the first failure aborts the pass and is returned. The report
// is returned in both cases.
//
// A Compile that starts while this engine is already in a pass, such as one
// made from a hook, fails at once with ErrReentrant.
func (e *Engine) Compile(ctx context.Context, opts Options) (report *Report, err error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrReentrant
	}
	defer e.running.Store(false)

	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			e.logger.Warn("failed to release compile gate", "error", rerr)
		}
	}()

	report = newReport(e.now())
	defer func() {
		report.FinishedAt = e.now()
		report.Err = err
		e.progress.OnPassComplete(report)
		e.record(report)
	}()

	e.hooks.runPreCompile(ctx, e)

	configs, total, failures, err := e.discoverConfigs(opts)
	e.progress.OnPassStart(total + len(failures))
	for _, res := range failures {
		report.Results = append(report.Results, res)
		e.progress.OnFileFailed(res)
	}
	if err != nil {
		return report, err
	}

	for entry := range e.catalog.All() {
		if !e.conventions.isCandidate(entry.Name, entry.IsRegular()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := e.compileFile(ctx, entry, configs[entry.Dir])
		report.Results = append(report.Results, res)

		if res.Err != nil {
			e.progress.OnFileFailed(res)
			if !opts.ContinueOnError {
				return report, res.Err
			}
			e.reportFailure(res, opts)
			continue
		}

		e.progress.OnFileCompiled(res)
		if opts.Verbose {
			fmt.Fprintf(e.out, "Compiled %s into %s\n", res.Source, res.Target)
		}
	}

	e.hooks.runPostCompile(ctx, e)
	return report, nil
}

// discoverConfigs traverses the catalog once, reading every sentinel file
// and counting compile candidates. A later sentinel for the same directory
// replaces an earlier one. Unreadable sentinels are returned as failed
// results; without ContinueOnError the first one also ends discovery.
func (e *Engine) discoverConfigs(opts Options) (map[string]*DirConfig, int, []FileResult, error) {
	configs := make(map[string]*DirConfig)
	total := 0
	var failures []FileResult

	for entry := range e.catalog.All() {
		if e.conventions.isCandidate(entry.Name, entry.IsRegular()) {
			total++
			continue
		}
		if !entry.IsRegular() || entry.Name != e.conventions.Sentinel {
			continue
		}

		cfg, err := loadDirConfig(entry.Path)
		if err != nil {
			res := FileResult{Source: entry.Path, Err: &FileError{Stage: StageConfig, Source: entry.Path, Err: err}}
			failures = append(failures, res)
			if !opts.ContinueOnError {
				return configs, total, failures, res.Err
			}
			e.reportFailure(res, opts)
			continue
		}
		configs[entry.Dir] = &cfg
	}

	return configs, total, failures, nil
}

// compileFile compiles, filters and writes a single source.
func (e *Engine) compileFile(ctx context.Context, entry catalog.Entry, cfg *DirConfig) (res FileResult) {
	start := e.now()
	res.Source = entry.Path
	defer func() { res.Duration = e.now().Sub(start) }()

	css, err := e.compiler.CompileFile(ctx, entry.Path)
	if err != nil {
		res.Err = &FileError{Stage: StageCompile, Source: entry.Path, Err: err}
		return res
	}

	target, outDir := e.conventions.resolveTarget(entry.Dir, entry.Name, cfg)
	res.Target = target

	css, err = e.hooks.runCSSFilter(ctx, css, &FilterContext{Source: entry.Path, Target: target, Engine: e})
	if err != nil {
		res.Err = &FileError{Stage: StageFilter, Source: entry.Path, Target: target, Err: err}
		return res
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		res.Err = &FileError{Stage: StageOutput, Source: entry.Path, Target: target, Err: err}
		return res
	}

	if err := writeOutput(target, css); err != nil {
		res.Err = &FileError{Stage: StageWrite, Source: entry.Path, Target: target, Err: err}
		return res
	}

	return res
}

// reportFailure surfaces a skipped file: on the interactive output in
// verbose mode, through the logger otherwise.
func (e *Engine) reportFailure(res FileResult, opts Options) {
	if opts.Verbose {
		fmt.Fprintln(e.out, res.Err)
		return
	}
	e.logger.Error("compilation failed", "source", res.Source, "error", res.Err)
}

func (e *Engine) record(report *Report) {
	if e.recorder == nil {
		return
	}
	// The pass context may already be cancelled; the report should still land.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.recorder.Record(ctx, report); err != nil {
		e.logger.Warn("failed to record compile report", "id", report.ID, "error", err)
	}
}
