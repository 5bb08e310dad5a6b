// Package gate coordinates watching and compiling across processes.
//
// Two marker files record whether watching is paused and whether a
// compilation is running. They are hints any process can read. Mutual
// exclusion between compile passes comes from Acquire, which combines an
// in-process semaphore with an exclusive file lock so two compilations can
// never overlap, even when started from different processes.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/mvp-joe/sasswatch/internal/logging"
)

const (
	// PausedMarker is the file name of the "watch paused" marker.
	PausedMarker = "sasswatch_watch_paused"

	// CompilingMarker is the file name of the "compilation in progress" marker.
	CompilingMarker = "sasswatch_compiling"

	// LockFile is the file name used for the cross-process compile lock.
	LockFile = "sasswatch_compile.lock"

	// DefaultStaleAfter is the age after which a marker is considered left
	// behind by a crashed process.
	DefaultStaleAfter = 5 * time.Minute

	lockRetryDelay = 50 * time.Millisecond
)

// ErrGateBusy is returned by Acquire when another compilation still holds
// the gate when the context ends.
var ErrGateBusy = errors.New("compile gate busy")

// Status is a snapshot of both markers.
type Status struct {
	Paused         bool
	PausedSince    time.Time
	Compiling      bool
	CompilingSince time.Time
}

// Gate manages the pause and compiling markers plus the compile lock.
type Gate struct {
	dir        string
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time

	sem  chan struct{} // In-process exclusion, capacity 1
	lock *flock.Flock  // Cross-process exclusion
}

// Option configures a Gate.
type Option func(*Gate)

// WithStaleAfter overrides the staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(g *Gate) {
		g.staleAfter = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithClock overrides the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// New creates a gate whose markers live in dir. The directory is created if
// it does not exist.
func New(dir string, opts ...Option) (*Gate, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create gate directory: %w", err)
	}

	g := &Gate{
		dir:        dir,
		staleAfter: DefaultStaleAfter,
		logger:     logging.NewNop(),
		now:        time.Now,
		sem:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.lock = flock.New(filepath.Join(dir, LockFile))

	return g, nil
}

// Dir returns the directory holding the markers.
func (g *Gate) Dir() string {
	return g.dir
}

// PauseWatch sets the "watch paused" marker.
func (g *Gate) PauseWatch() error {
	return g.touch(PausedMarker)
}

// ResumeWatch clears the "watch paused" marker. Clearing an absent marker is
// a no-op.
func (g *Gate) ResumeWatch() error {
	return g.clear(PausedMarker)
}

// IsPaused reports whether the "watch paused" marker exists.
func (g *Gate) IsPaused() bool {
	return g.exists(PausedMarker)
}

// StartCompilation sets the "compilation in progress" marker.
func (g *Gate) StartCompilation() error {
	return g.touch(CompilingMarker)
}

// StopCompilation clears the "compilation in progress" marker. Clearing an
// absent marker is a no-op.
func (g *Gate) StopCompilation() error {
	return g.clear(CompilingMarker)
}

// IsCompiling reports whether the "compilation in progress" marker exists.
func (g *Gate) IsCompiling() bool {
	return g.exists(CompilingMarker)
}

// Status returns both markers with their modification times.
func (g *Gate) Status() Status {
	var s Status
	if info, err := os.Stat(g.path(PausedMarker)); err == nil {
		s.Paused = true
		s.PausedSince = info.ModTime()
	}
	if info, err := os.Stat(g.path(CompilingMarker)); err == nil {
		s.Compiling = true
		s.CompilingSince = info.ModTime()
	}
	return s
}

// RecoverStale clears markers older than the staleness threshold and returns
// the names of the markers it removed. A marker that old was left behind by a
// process that died while holding it.
func (g *Gate) RecoverStale() []string {
	var cleared []string
	for _, name := range []string{PausedMarker, CompilingMarker} {
		info, err := os.Stat(g.path(name))
		if err != nil {
			continue
		}
		age := g.now().Sub(info.ModTime())
		if age <= g.staleAfter {
			continue
		}
		if err := g.clear(name); err != nil {
			g.logger.Warn("failed to clear stale marker", "marker", name, "error", err)
			continue
		}
		g.logger.Warn("cleared stale marker", "marker", name, "age", age.Round(time.Second))
		cleared = append(cleared, name)
	}
	return cleared
}

// Acquire takes exclusive ownership of compilation. It waits for any other
// compilation in this process or another one to finish, then pauses watching
// and sets the compiling marker. The returned release function undoes all of
// that and must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (func() error, error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrGateBusy, ctx.Err())
	}

	locked, err := g.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		<-g.sem
		if err == nil || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateBusy, ctx.Err())
		}
		return nil, fmt.Errorf("failed to acquire compile lock: %w", err)
	}

	release := func() error {
		defer func() { <-g.sem }()
		return errors.Join(
			g.StopCompilation(),
			g.ResumeWatch(),
			g.lock.Unlock(),
		)
	}

	if err := errors.Join(g.PauseWatch(), g.StartCompilation()); err != nil {
		return nil, errors.Join(err, release())
	}
	return release, nil
}

func (g *Gate) path(name string) string {
	return filepath.Join(g.dir, name)
}

func (g *Gate) exists(name string) bool {
	_, err := os.Stat(g.path(name))
	return err == nil
}

// touch creates the marker or refreshes its modification time.
func (g *Gate) touch(name string) error {
	path := g.path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	f.Close()

	now := g.now()
	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

func (g *Gate) clear(name string) error {
	if err := os.Remove(g.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear %s: %w", name, err)
	}
	return nil
}
