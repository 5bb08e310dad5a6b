// Package catalog aggregates several directory trees into one restartable
// sequence of filesystem entries.
package catalog

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Entry is a single filesystem entry yielded by the catalog.
type Entry struct {
	Path  string      // Full path of the entry
	Dir   string      // Containing directory (the entry itself for a root)
	Name  string      // Base name
	IsDir bool        // Whether the entry is a directory
	Mode  fs.FileMode // Type bits as reported by the directory listing
}

// IsRegular reports whether the entry is a regular file.
func (e Entry) IsRegular() bool {
	return e.Mode.IsRegular()
}

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Catalog is an ordered set of source roots exposed as a single sequence.
// Every traversal starts from the first root again.
type Catalog struct {
	roots  []string
	ignore []compiledPattern
}

// New creates an empty catalog. Entries whose root-relative path matches one
// of the ignore globs are left out of every traversal.
func New(ignore ...string) (*Catalog, error) {
	c := &Catalog{}
	for _, pattern := range ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		c.ignore = append(c.ignore, compiledPattern{pattern: pattern, glob: g})
	}
	return c, nil
}

// AddRoot registers path when it is an existing directory.
// Anything else is skipped without error; the return value tells whether the
// root was registered.
func (c *Catalog) AddRoot(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	c.roots = append(c.roots, filepath.Clean(path))
	return true
}

// Roots returns the registered roots in registration order.
func (c *Catalog) Roots() []string {
	out := make([]string, len(c.roots))
	copy(out, c.roots)
	return out
}

// HasSources reports whether a traversal yields at least one entry.
// The root directory itself counts, so any registered root that still exists
// makes the catalog non-empty.
func (c *Catalog) HasSources() bool {
	for range c.All() {
		return true
	}
	return false
}

// All returns a lazy sequence over every entry of every root: roots in
// registration order, each walked in lexical order. The sequence can be
// ranged over any number of times.
func (c *Catalog) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, root := range c.roots {
			if !c.walk(root, yield) {
				return
			}
		}
	}
}

// ForEach calls fn for every entry and stops at the first error.
func (c *Catalog) ForEach(fn func(Entry) error) error {
	for entry := range c.All() {
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

// walk yields the entries of a single root. Returns false if the consumer
// stopped early.
func (c *Catalog) walk(root string, yield func(Entry) bool) bool {
	stopped := false
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Root removed since registration, or unreadable subtree
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if path != root {
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && c.shouldIgnore(filepath.ToSlash(rel)) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}

		entry := Entry{
			Path:  path,
			Dir:   filepath.Dir(path),
			Name:  d.Name(),
			IsDir: d.IsDir(),
			Mode:  d.Type(),
		}
		if d.IsDir() && path == root {
			entry.Dir = path
		}

		if !yield(entry) {
			stopped = true
			return filepath.SkipAll
		}
		return nil
	})
	return !stopped
}

// Ignored reports whether path lies under a registered root and matches an
// ignore pattern relative to it. Roots themselves are never ignored.
func (c *Catalog) Ignored(path string) bool {
	if len(c.ignore) == 0 {
		return false
	}
	path = filepath.Clean(path)
	for _, root := range c.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if c.shouldIgnore(filepath.ToSlash(rel)) {
			return true
		}
	}
	return false
}

// shouldIgnore checks if a root-relative path matches any ignore pattern.
func (c *Catalog) shouldIgnore(relPath string) bool {
	if len(c.ignore) == 0 {
		return false
	}
	if c.matchesAny(relPath) {
		return true
	}
	// "node_modules" should match pattern "node_modules/**"
	return c.matchesAny(relPath + "/**")
}

func (c *Catalog) matchesAny(path string) bool {
	for _, cp := range c.ignore {
		if cp.glob.Match(path) {
			return true
		}
	}

	// Let "**/*.css" also match "main.css" at the top of a root.
	if !strings.Contains(path, "/") {
		for _, cp := range c.ignore {
			if !strings.HasPrefix(cp.pattern, "**/") {
				continue
			}
			simplified, err := glob.Compile(strings.TrimPrefix(cp.pattern, "**/"), '/')
			if err == nil && simplified.Match(path) {
				return true
			}
		}
	}
	return false
}
