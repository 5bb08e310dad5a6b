package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Catalog:
// - AddRoot registers existing directories and skips missing paths and files
// - HasSources is false for an empty catalog and true once a root exists
// - HasSources does not disturb later traversals
// - All yields roots in registration order, root entry first
// - All can be traversed repeatedly with identical results
// - Breaking out of All stops the walk early
// - Ignore patterns skip matching files and whole directories
// - Ignored matches paths below a root, including ones that do not exist yet
// - ForEach stops at the first error

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("a { color: red; }"), 0644))
}

func paths(c *Catalog) []string {
	var out []string
	for e := range c.All() {
		out = append(out, e.Path)
	}
	return out
}

func TestAddRoot_SkipsMissingAndFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "main.scss")
	writeFile(t, file)

	c, err := New()
	require.NoError(t, err)

	assert.False(t, c.AddRoot(filepath.Join(dir, "missing")))
	assert.False(t, c.AddRoot(file))
	assert.True(t, c.AddRoot(dir))
	assert.Equal(t, []string{dir}, c.Roots())
}

func TestHasSources(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	assert.False(t, c.HasSources())

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.scss"))
	require.True(t, c.AddRoot(dir))

	assert.True(t, c.HasSources())
	// Calling it again and traversing afterwards still starts from the top
	assert.True(t, c.HasSources())
	assert.Equal(t, []string{dir, filepath.Join(dir, "main.scss")}, paths(c))
}

func TestAll_RootOrderAndRestart(t *testing.T) {
	t.Parallel()

	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, filepath.Join(first, "b.scss"))
	writeFile(t, filepath.Join(first, "sub", "a.scss"))
	writeFile(t, filepath.Join(second, "z.scss"))

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.AddRoot(second))
	require.True(t, c.AddRoot(first))

	got := paths(c)
	require.Len(t, got, 6)
	assert.Equal(t, second, got[0])
	assert.Equal(t, filepath.Join(second, "z.scss"), got[1])
	assert.Equal(t, first, got[2])
	assert.ElementsMatch(t, []string{
		filepath.Join(first, "b.scss"),
		filepath.Join(first, "sub"),
		filepath.Join(first, "sub", "a.scss"),
	}, got[3:])

	assert.Equal(t, got, paths(c), "second traversal must see the same entries")
}

func TestAll_EntryFields(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "sub", "_base.scss")
	writeFile(t, file)

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.AddRoot(dir))

	var found *Entry
	for e := range c.All() {
		if e.Path == file {
			e := e
			found = &e
		}
		if e.Path == dir {
			assert.True(t, e.IsDir)
			assert.Equal(t, dir, e.Dir)
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "_base.scss", found.Name)
	assert.Equal(t, filepath.Join(dir, "sub"), found.Dir)
	assert.False(t, found.IsDir)
	assert.True(t, found.IsRegular())
}

func TestAll_EarlyBreak(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"a.scss", "b.scss", "c.scss"} {
		writeFile(t, filepath.Join(dir, name))
	}
	other := t.TempDir()

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.AddRoot(dir))
	require.True(t, c.AddRoot(other))

	count := 0
	for range c.All() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestAll_IgnorePatterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.scss"))
	writeFile(t, filepath.Join(dir, "node_modules", "pkg", "lib.scss"))
	writeFile(t, filepath.Join(dir, "main.css"))
	writeFile(t, filepath.Join(dir, "sub", "other.css"))

	c, err := New("node_modules/**", "**/*.css")
	require.NoError(t, err)
	require.True(t, c.AddRoot(dir))

	assert.Equal(t, []string{dir, filepath.Join(dir, "main.scss"), filepath.Join(dir, "sub")}, paths(c))
}

func TestIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outside := t.TempDir()

	c, err := New("node_modules/**", "**/*.css")
	require.NoError(t, err)
	require.True(t, c.AddRoot(dir))

	assert.True(t, c.Ignored(filepath.Join(dir, "node_modules")))
	assert.True(t, c.Ignored(filepath.Join(dir, "node_modules", "pkg", "lib.scss")))
	assert.True(t, c.Ignored(filepath.Join(dir, "main.css")))
	assert.True(t, c.Ignored(filepath.Join(dir, "sub", "other.css")))

	assert.False(t, c.Ignored(dir))
	assert.False(t, c.Ignored(filepath.Join(dir, "main.scss")))
	assert.False(t, c.Ignored(filepath.Join(dir, "sub")))
	assert.False(t, c.Ignored(filepath.Join(outside, "node_modules")))

	plain, err := New()
	require.NoError(t, err)
	require.True(t, plain.AddRoot(dir))
	assert.False(t, plain.Ignored(filepath.Join(dir, "node_modules")))
}

func TestAll_RootRemovedAfterRegistration(t *testing.T) {
	t.Parallel()

	parent := t.TempDir()
	dir := filepath.Join(parent, "styles")
	writeFile(t, filepath.Join(dir, "main.scss"))

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.AddRoot(dir))
	require.NoError(t, os.RemoveAll(dir))

	assert.Empty(t, paths(c))
	assert.False(t, c.HasSources())
}

func TestForEach_StopsOnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.scss"))
	writeFile(t, filepath.Join(dir, "b.scss"))

	c, err := New()
	require.NoError(t, err)
	require.True(t, c.AddRoot(dir))

	sentinel := os.ErrClosed
	visited := 0
	err = c.ForEach(func(e Entry) error {
		visited++
		if !e.IsDir {
			return sentinel
		}
		return nil
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, visited)
}
