// Package watcher recompiles stylesheet sources when they change on disk.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mvp-joe/sasswatch/internal/engine"
	"github.com/mvp-joe/sasswatch/internal/gate"
	"github.com/mvp-joe/sasswatch/internal/logging"
)

const (
	// DefaultPollInterval is the pause between loop iterations.
	DefaultPollInterval = time.Second

	// DefaultBufferSize is the fsnotify event buffer.
	DefaultBufferSize = 256

	// Forever is the TTL sentinel for an unbounded watch.
	Forever = "*"
)

// relevantOps are the event kinds that can change compiled output.
const relevantOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove

// State is the loop's position in its lifecycle.
type State int32

const (
	Idle State = iota
	Watching
	PendingCompile
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Watching:
		return "watching"
	case PendingCompile:
		return "pending-compile"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StopReason tells the caller why Run returned.
type StopReason int

const (
	// StopNoSources means the catalog was empty and nothing was watched.
	StopNoSources StopReason = iota
	// StopExpired means the TTL elapsed.
	StopExpired
	// StopCancelled means the context was cancelled.
	StopCancelled
	// StopFailed means the event subscription broke.
	StopFailed
)

func (r StopReason) String() string {
	switch r {
	case StopNoSources:
		return "no sources"
	case StopExpired:
		return "ttl expired"
	case StopCancelled:
		return "cancelled"
	case StopFailed:
		return "failed"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ErrSubscriptionClosed is returned when fsnotify closes its channels
// while the loop is still running.
var ErrSubscriptionClosed = errors.New("filesystem subscription closed")

// Watcher runs the watch loop for one compiler.
type Watcher struct {
	compiler     Compiler
	gate         GateReader
	logger       *slog.Logger
	pollInterval time.Duration
	bufferSize   uint
	extension    string
	compileOpts  engine.Options

	state atomic.Int32
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithPollInterval sets the sleep between iterations.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithBufferSize sets the number of events fsnotify may queue.
func WithBufferSize(n uint) Option {
	return func(w *Watcher) {
		w.bufferSize = n
	}
}

// WithExtension sets the source extension that triggers a compile.
func WithExtension(ext string) Option {
	return func(w *Watcher) {
		w.extension = ext
	}
}

// WithCompileOptions sets the options passed to every triggered pass.
func WithCompileOptions(opts engine.Options) Option {
	return func(w *Watcher) {
		w.compileOpts = opts
	}
}

// New creates a watcher. Triggered passes continue past failing files
// unless WithCompileOptions says otherwise.
func New(c Compiler, g GateReader, opts ...Option) *Watcher {
	w := &Watcher{
		compiler:     c,
		gate:         g,
		logger:       logging.NewNop(),
		pollInterval: DefaultPollInterval,
		bufferSize:   DefaultBufferSize,
		extension:    engine.DefaultConventions().Extension,
		compileOpts:  engine.Options{ContinueOnError: true},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current loop state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
}

// Run watches every source directory and compiles after relevant changes
// until ctx is cancelled or ttl elapses. A ttl <= 0 never expires.
//
// Any number of matching events between passes collapse into one pass. A
// pending pass waits while the event queue is non-empty or another process
// holds the compiling flag. Events seen while the gate is paused are dropped.
func (w *Watcher) Run(ctx context.Context, ttl time.Duration) (StopReason, error) {
	if !w.compiler.HasSources() {
		w.logger.Warn("no source directories to watch")
		w.setState(Stopped)
		return StopNoSources, nil
	}

	fsw, err := fsnotify.NewBufferedWatcher(w.bufferSize)
	if err != nil {
		w.setState(Stopped)
		return StopFailed, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer fsw.Close()

	dirs := w.watchSources(fsw)
	w.logger.Info("watching for changes", "directories", dirs, "ttl", ttl)

	var expired <-chan time.Time
	if ttl > 0 {
		timer := time.NewTimer(ttl)
		defer timer.Stop()
		expired = timer.C
	}

	w.setState(Watching)
	defer w.setState(Stopped)

	pending := false
	for {
		if pending && len(fsw.Events) == 0 && !w.gate.IsCompiling() {
			if w.compile(ctx) {
				pending = false
				w.setState(Watching)
			}
		}

		// While a pass is pending, wake up periodically to retry it even
		// if no further events arrive.
		var retry <-chan time.Time
		if pending {
			retry = time.After(w.pollInterval)
		}

		retried := false
		select {
		case <-ctx.Done():
			return StopCancelled, nil

		case <-expired:
			w.logger.Info("watch ttl expired", "ttl", ttl)
			return StopExpired, nil

		case <-retry:
			retried = true

		case event, ok := <-fsw.Events:
			if !ok {
				return StopFailed, ErrSubscriptionClosed
			}
			changed := w.handleEvent(fsw, event)
			for len(fsw.Events) > 0 {
				if w.handleEvent(fsw, <-fsw.Events) {
					changed = true
				}
			}
			if changed && !pending {
				pending = true
				w.setState(PendingCompile)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return StopFailed, ErrSubscriptionClosed
			}
			w.logger.Warn("filesystem watcher error", "error", err)
		}

		// The retry timer already waited one interval.
		if retried {
			continue
		}

		select {
		case <-ctx.Done():
			return StopCancelled, nil
		case <-expired:
			w.logger.Info("watch ttl expired", "ttl", ttl)
			return StopExpired, nil
		case <-time.After(w.pollInterval):
		}
	}
}

// compile runs one pass and reports whether the pending change was
// consumed. A busy gate leaves it pending.
func (w *Watcher) compile(ctx context.Context) bool {
	report, err := w.compiler.Compile(ctx, w.compileOpts)
	switch {
	case errors.Is(err, gate.ErrGateBusy):
		w.logger.Debug("compile gate busy, retrying", "error", err)
		return ctx.Err() != nil
	case err != nil:
		w.logger.Error("watch-triggered compile failed", "error", err)
	case report != nil:
		w.logger.Info("compiled",
			"files", report.Compiled(),
			"failed", len(report.Failed()),
			"duration", report.Duration())
	}
	return true
}

// handleEvent reports whether event should trigger a compile. Newly created
// directories are added to the subscription as a side effect.
func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if w.compiler.Ignored(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(fsw, event.Name)
		}
	}

	if event.Op&relevantOps == 0 || filepath.Ext(event.Name) != w.extension {
		return false
	}
	if w.gate.IsPaused() {
		w.logger.Debug("watch paused, ignoring change", "path", event.Name)
		return false
	}
	w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
	return true
}

// watchSources subscribes to every distinct directory in the catalog and
// returns how many were added.
func (w *Watcher) watchSources(fsw *fsnotify.Watcher) int {
	seen := make(map[string]bool)
	for entry := range w.compiler.Sources() {
		dir := entry.Dir
		if entry.IsDir {
			dir = entry.Path
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true

		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", "path", dir, "error", err)
			delete(seen, dir)
		}
	}
	return len(seen)
}

// addRecursive watches root and every directory below it, skipping ignored
// subtrees.
func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.compiler.Ignored(path) {
			return fs.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to watch new directory", "path", root, "error", err)
	}
}

// ParseTTL parses a TTL given in whole minutes. "*" and "" mean forever and
// return 0.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == Forever {
		return 0, nil
	}
	minutes, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: want minutes or %q", s, Forever)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("invalid ttl %q: must be positive", s)
	}
	return time.Duration(minutes) * time.Minute, nil
}
