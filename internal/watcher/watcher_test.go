package watcher

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mvp-joe/sasswatch/internal/catalog"
	"github.com/mvp-joe/sasswatch/internal/engine"
	"github.com/mvp-joe/sasswatch/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Watcher:
// - Empty catalog returns StopNoSources without subscribing
// - A stylesheet change triggers exactly one compile
// - A burst of changes collapses into a single compile
// - Changes to other extensions are ignored
// - Changes while the gate is paused are dropped
// - A pending compile waits while another process is compiling, then runs
// - A busy gate keeps the change pending
// - Directories created while watching are watched too
// - Ignored paths never trigger a compile, including new ignored directories
// - While another process compiles, the pending pass is rechecked once per interval
// - Compile errors are logged and the loop keeps running
// - TTL expiry returns StopExpired
// - Context cancellation returns StopCancelled and the state ends Stopped
// - Triggered passes use ContinueOnError by default
// - ParseTTL accepts minutes and the forever sentinel

const testPoll = 20 * time.Millisecond

type fakeCompiler struct {
	cat *catalog.Catalog

	mu    sync.Mutex
	calls int
	opts  []engine.Options
	errs  []error // returned in order, nil once exhausted
}

func newFakeCompiler(t *testing.T, roots ...string) *fakeCompiler {
	t.Helper()
	return newIgnoringCompiler(t, nil, roots...)
}

func newIgnoringCompiler(t *testing.T, ignore []string, roots ...string) *fakeCompiler {
	t.Helper()
	cat, err := catalog.New(ignore...)
	require.NoError(t, err)
	for _, root := range roots {
		cat.AddRoot(root)
	}
	return &fakeCompiler{cat: cat}
}

func (f *fakeCompiler) Compile(ctx context.Context, opts engine.Options) (*engine.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.opts = append(f.opts, opts)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &engine.Report{StartedAt: time.Now(), FinishedAt: time.Now()}, nil
}

func (f *fakeCompiler) HasSources() bool                 { return f.cat.HasSources() }
func (f *fakeCompiler) Sources() iter.Seq[catalog.Entry] { return f.cat.All() }
func (f *fakeCompiler) Ignored(path string) bool          { return f.cat.Ignored(path) }

func (f *fakeCompiler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGate struct {
	paused    atomic.Bool
	compiling atomic.Bool
	checks    atomic.Int32 // IsCompiling calls
}

func (g *fakeGate) IsPaused() bool { return g.paused.Load() }

func (g *fakeGate) IsCompiling() bool {
	g.checks.Add(1)
	return g.compiling.Load()
}

type runResult struct {
	reason StopReason
	err    error
}

// startWatcher runs w in the background and waits until it is watching.
func startWatcher(t *testing.T, w *Watcher, ttl time.Duration) (context.CancelFunc, <-chan runResult) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runResult, 1)
	go func() {
		reason, err := w.Run(ctx, ttl)
		done <- runResult{reason, err}
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	})

	require.Eventually(t, func() bool { return w.State() == Watching }, 2*time.Second, 5*time.Millisecond)
	return cancel, done
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("a{}"), 0644))
}

func TestRun_NoSources(t *testing.T) {
	t.Parallel()

	cmp := newFakeCompiler(t, filepath.Join(t.TempDir(), "missing"))
	w := New(cmp, &fakeGate{})

	reason, err := w.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, StopNoSources, reason)
	assert.Equal(t, Stopped, w.State())
	assert.Zero(t, cmp.count())
}

func TestRun_ChangeTriggersCompile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.scss"))

	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(10 * testPoll)
	assert.Equal(t, 1, cmp.count())
	assert.Equal(t, Watching, w.State())

	cmp.mu.Lock()
	assert.True(t, cmp.opts[0].ContinueOnError)
	cmp.mu.Unlock()
}

func TestRun_BurstCollapses(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(100*time.Millisecond))
	startWatcher(t, w, 0)

	for _, name := range []string{"a.scss", "b.scss", "_c.scss", "d.scss"} {
		writeFile(t, filepath.Join(root, name))
	}

	require.Eventually(t, func() bool { return cmp.count() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, cmp.count())
}

func TestRun_IgnoresOtherExtensions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.css"))
	writeFile(t, filepath.Join(root, "notes.txt"))

	time.Sleep(15 * testPoll)
	assert.Zero(t, cmp.count())
}

func TestRun_CustomExtension(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll), WithExtension(".sass"))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.scss"))
	time.Sleep(15 * testPoll)
	assert.Zero(t, cmp.count())

	writeFile(t, filepath.Join(root, "main.sass"))
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_PausedDropsEvents(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	g := &fakeGate{}
	g.paused.Store(true)
	w := New(cmp, g, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.scss"))
	time.Sleep(15 * testPoll)
	assert.Zero(t, cmp.count())

	// Resuming does not replay dropped events
	g.paused.Store(false)
	time.Sleep(15 * testPoll)
	assert.Zero(t, cmp.count())

	writeFile(t, filepath.Join(root, "main.scss"))
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_WaitsForOtherCompilation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	g := &fakeGate{}
	w := New(cmp, g, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	g.compiling.Store(true)
	writeFile(t, filepath.Join(root, "main.scss"))

	require.Eventually(t, func() bool { return w.State() == PendingCompile }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(10 * testPoll)
	assert.Zero(t, cmp.count())

	g.compiling.Store(false)
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return w.State() == Watching }, 2*time.Second, 5*time.Millisecond)
}

func TestRun_PendingRecheckedEveryInterval(t *testing.T) {
	t.Parallel()

	const poll = 50 * time.Millisecond
	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	g := &fakeGate{}
	w := New(cmp, g, WithPollInterval(poll))
	startWatcher(t, w, 0)

	g.compiling.Store(true)
	writeFile(t, filepath.Join(root, "main.scss"))
	require.Eventually(t, func() bool { return w.State() == PendingCompile }, 2*time.Second, 5*time.Millisecond)

	g.checks.Store(0)
	time.Sleep(20 * poll)

	// One check per interval gives about 20; sleeping twice per retry gives 10.
	assert.Greater(t, int(g.checks.Load()), 13)
	assert.Zero(t, cmp.count())
}

func TestRun_BusyGateRetries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	cmp.errs = []error{gate.ErrGateBusy}
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.scss"))

	require.Eventually(t, func() bool { return cmp.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(10 * testPoll)
	assert.Equal(t, 2, cmp.count())
}

func TestRun_CompileErrorKeepsWatching(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	cmp.errs = []error{errors.New("compiler exploded")}
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.scss"))
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(5 * testPoll)

	writeFile(t, filepath.Join(root, "main.scss"))
	require.Eventually(t, func() bool { return cmp.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	sub := filepath.Join(root, "theme")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(10 * testPoll)

	writeFile(t, filepath.Join(sub, "theme.scss"))
	require.Eventually(t, func() bool { return cmp.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_IgnoredPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor"), 0755))

	cmp := newIgnoringCompiler(t, []string{"node_modules/**", "vendor/**"}, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	pkg := filepath.Join(root, "node_modules", "pkg")
	require.NoError(t, os.MkdirAll(pkg, 0755))
	time.Sleep(10 * testPoll)

	writeFile(t, filepath.Join(pkg, "vendor.scss"))
	writeFile(t, filepath.Join(root, "vendor", "lib.scss"))
	time.Sleep(15 * testPoll)
	assert.Zero(t, cmp.count())

	writeFile(t, filepath.Join(root, "main.scss"))
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_WatchesExistingSubdirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(sub, "deep.scss"))
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestRun_TTLExpires(t *testing.T) {
	t.Parallel()

	cmp := newFakeCompiler(t, t.TempDir())
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))

	reason, err := w.Run(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StopExpired, reason)
	assert.Equal(t, Stopped, w.State())
}

func TestRun_Cancelled(t *testing.T) {
	t.Parallel()

	cmp := newFakeCompiler(t, t.TempDir())
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll))
	cancel, done := startWatcher(t, w, 0)

	cancel()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, StopCancelled, res.reason)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
	assert.Equal(t, Stopped, w.State())
}

func TestRun_CompileOptions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmp := newFakeCompiler(t, root)
	w := New(cmp, &fakeGate{}, WithPollInterval(testPoll),
		WithCompileOptions(engine.Options{ContinueOnError: false, Verbose: true}))
	startWatcher(t, w, 0)

	writeFile(t, filepath.Join(root, "main.scss"))
	require.Eventually(t, func() bool { return cmp.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cmp.mu.Lock()
	defer cmp.mu.Unlock()
	assert.Equal(t, engine.Options{ContinueOnError: false, Verbose: true}, cmp.opts[0])
}

func TestParseTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "*", want: 0},
		{in: "", want: 0},
		{in: "60", want: time.Hour},
		{in: " 5 ", want: 5 * time.Minute},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "ten", wantErr: true},
		{in: "1.5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTTL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending-compile", PendingCompile.String())
	assert.Equal(t, "ttl expired", StopExpired.String())
}
