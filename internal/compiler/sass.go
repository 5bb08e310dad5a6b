package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultBinary is the executable name looked up on PATH.
	DefaultBinary = "sass"

	// DefaultTimeout bounds a single file compilation.
	DefaultTimeout = 30 * time.Second

	// StyleCompressed produces minified output.
	StyleCompressed = "compressed"

	// StyleExpanded produces readable output.
	StyleExpanded = "expanded"
)

// SassOptions configures the Dart Sass adapter.
type SassOptions struct {
	Binary    string        // Executable name or path (default "sass")
	Style     string        // Output style (default compressed)
	LoadPaths []string      // Extra --load-path entries
	Timeout   time.Duration // Per-file timeout (default 30s)
}

// SassBinary compiles stylesheets by running the Dart Sass CLI.
type SassBinary struct {
	opts SassOptions
}

// NewSassBinary creates an adapter, filling in defaults for zero options.
func NewSassBinary(opts SassOptions) *SassBinary {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.Style == "" {
		opts.Style = StyleCompressed
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &SassBinary{opts: opts}
}

// CompileFile runs sass on path and returns the generated CSS from stdout.
// The command is executed directly, never through a shell.
func (s *SassBinary) CompileFile(ctx context.Context, path string) (string, error) {
	binary, err := exec.LookPath(s.opts.Binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, s.opts.Binary)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, binary, s.buildArgs(path)...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return "", &Diagnostic{Path: path, Message: fmt.Sprintf("compilation timed out (%s)", s.opts.Timeout)}
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = exitErr.Error()
			}
			return "", &Diagnostic{Path: path, Message: msg}
		}
		return "", fmt.Errorf("execution failed: %w", err)
	}

	return stdout.String(), nil
}

// buildArgs constructs the argv passed to sass.
func (s *SassBinary) buildArgs(path string) []string {
	args := []string{
		"--style=" + s.opts.Style,
		"--no-source-map",
		"--no-error-css",
	}
	for _, lp := range s.opts.LoadPaths {
		args = append(args, "--load-path="+lp)
	}
	return append(args, path)
}
