package engine

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/sasswatch/internal/gate"
)

var (
	// ErrCompileFailure indicates the compiler rejected a source file.
	ErrCompileFailure = errors.New("compile failure")

	// ErrIOFailure indicates output could not be written.
	ErrIOFailure = errors.New("io failure")

	// ErrConfigFailure indicates a directory sentinel file could not be parsed.
	ErrConfigFailure = errors.New("config failure")

	// ErrFilterFailure indicates a CSS filter hook returned an error.
	ErrFilterFailure = errors.New("css filter failure")

	// ErrReentrant is returned by Compile while the same engine is already
	// running a pass, for example when a hook calls Compile. It matches
	// gate.ErrGateBusy.
	ErrReentrant = fmt.Errorf("%w: pass already running on this engine", gate.ErrGateBusy)
)

// Stage names the step of per-file processing that failed.
type Stage string

const (
	StageConfig  Stage = "config"
	StageCompile Stage = "compile"
	StageOutput  Stage = "output"
	StageFilter  Stage = "filter"
	StageWrite   Stage = "write"
)

// FileError describes a failure tied to a single file.
// errors.Is matches both the kind sentinel and the underlying cause.
type FileError struct {
	Stage  Stage
	Source string
	Target string
	Err    error
}

func (e *FileError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s -> %s: %v", e.Stage, e.Source, e.Target, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Source, e.Err)
}

func (e *FileError) Unwrap() []error {
	return []error{e.kind(), e.Err}
}

func (e *FileError) kind() error {
	switch e.Stage {
	case StageConfig:
		return ErrConfigFailure
	case StageCompile:
		return ErrCompileFailure
	case StageFilter:
		return ErrFilterFailure
	default:
		return ErrIOFailure
	}
}
