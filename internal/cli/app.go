package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mvp-joe/sasswatch/internal/compiler"
	"github.com/mvp-joe/sasswatch/internal/config"
	"github.com/mvp-joe/sasswatch/internal/engine"
	"github.com/mvp-joe/sasswatch/internal/gate"
	"github.com/mvp-joe/sasswatch/internal/history"
	"github.com/mvp-joe/sasswatch/internal/logging"
	"github.com/spf13/cobra"
)

// app holds the collaborators every command builds from configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	gate     *gate.Gate
	compiler compiler.Compiler
	history  *history.Store // nil when history is disabled
	out      io.Writer
}

// newAppFromCmd loads configuration and builds the app for a command.
func newAppFromCmd(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level)

	return newApp(cfg, logger, cmd.OutOrStdout())
}

// newApp builds the gate, compiler and history store described by cfg.
func newApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	g, err := gate.New(cfg.Gate.Dir,
		gate.WithStaleAfter(cfg.Gate.StaleAfter),
		gate.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		gate:   g,
		compiler: compiler.NewSassBinary(compiler.SassOptions{
			Binary:    cfg.Compiler.Binary,
			Style:     cfg.Compiler.Style,
			LoadPaths: cfg.Compiler.LoadPaths,
			Timeout:   cfg.Compiler.Timeout,
		}),
		out: out,
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			// History is diagnostic only; compiling must not depend on it.
			logger.Warn("compile history unavailable", "path", cfg.History.Path, "error", err)
		} else {
			a.history = store
		}
	}

	return a, nil
}

// Close releases the history store.
func (a *app) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// conventions maps the sources section onto engine naming conventions.
func (a *app) conventions() engine.Conventions {
	return engine.Conventions{
		Extension:       a.cfg.Sources.Extension,
		TargetExtension: a.cfg.Sources.TargetExtension,
		Sentinel:        a.cfg.Sources.Sentinel,
		PartialPrefix:   a.cfg.Sources.PartialPrefix,
		LiteralRename:   a.cfg.Sources.LiteralRename,
	}
}

// newEngine creates an engine over folders, which are resolved against base.
// Missing folders are skipped.
func (a *app) newEngine(base string, folders []string, opts ...engine.Option) (*engine.Engine, error) {
	if len(folders) == 0 {
		return nil, errors.New("no source folders given")
	}
	paths, err := resolveFolders(base, folders)
	if err != nil {
		return nil, err
	}

	all := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithOutput(a.out),
		engine.WithConventions(a.conventions()),
		engine.WithIgnore(a.cfg.Sources.Ignore...),
	}
	if a.history != nil {
		all = append(all, engine.WithRecorder(a.history))
	}
	all = append(all, opts...)

	eng, err := engine.New(a.compiler, a.gate, all...)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		eng.AddSource(p)
	}
	return eng, nil
}
