// Package compiler turns stylesheet sources into CSS.
//
// The transformation itself is delegated to an external implementation; this
// package only defines the capability and ships an adapter for the Dart Sass
// command line tool.
package compiler

import (
	"context"
	"errors"
	"fmt"
)

// ErrBinaryNotFound indicates the configured sass executable could not be located.
var ErrBinaryNotFound = errors.New("sass binary not found")

// Compiler compiles a single stylesheet file into CSS text.
type Compiler interface {
	// CompileFile compiles the file at path. Failures caused by the stylesheet
	// itself are reported as *Diagnostic.
	CompileFile(ctx context.Context, path string) (string, error)
}

// Func adapts a plain function to the Compiler interface.
type Func func(ctx context.Context, path string) (string, error)

// CompileFile calls f.
func (f Func) CompileFile(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// Diagnostic describes why a stylesheet was rejected.
type Diagnostic struct {
	Path    string
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s", d.Path, d.Message)
}
