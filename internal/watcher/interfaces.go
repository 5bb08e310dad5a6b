package watcher

import (
	"context"
	"iter"

	"github.com/mvp-joe/sasswatch/internal/catalog"
	"github.com/mvp-joe/sasswatch/internal/engine"
)

// Compiler runs compile passes over a set of sources.
type Compiler interface {
	// Compile runs one full pass.
	Compile(ctx context.Context, opts engine.Options) (*engine.Report, error)

	// HasSources reports whether any registered source root exists.
	HasSources() bool

	// Sources yields every catalog entry. Directories are the watch targets.
	Sources() iter.Seq[catalog.Entry]

	// Ignored reports whether a path is excluded from the sources.
	Ignored(path string) bool
}

// GateReader exposes the compile gate flags the loop consults.
type GateReader interface {
	IsPaused() bool
	IsCompiling() bool
}
