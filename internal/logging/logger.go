// Package logging builds the structured loggers shared by sasswatch components.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the application logger.
// Output goes to stderr so it never mixes with compile notices on stdout.
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a text logger writing to w.
// The "error" attribute key is shortened to "err" for consistency.
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
