package engine

import (
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"
)

// CSSDirKey is the sentinel key naming an output subdirectory.
const CSSDirKey = "css_dir"

// DirConfig holds the settings read from a directory's sentinel file.
type DirConfig struct {
	Dir    string            // Directory containing the sentinel
	Values map[string]string // All keys, sections flattened
}

// CSSDir returns the output subdirectory override, or "" if none is set.
func (c DirConfig) CSSDir() string {
	return strings.TrimSpace(c.Values[CSSDirKey])
}

// loadDirConfig parses a sentinel file as flat key/value pairs. Keys inside
// sections are merged into the same map, later sections winning.
func loadDirConfig(path string) (DirConfig, error) {
	f, err := ini.Load(path)
	if err != nil {
		return DirConfig{}, err
	}

	cfg := DirConfig{
		Dir:    filepath.Dir(path),
		Values: make(map[string]string),
	}
	for _, section := range f.Sections() {
		for _, key := range section.Keys() {
			cfg.Values[key.Name()] = unquote(key.String())
		}
	}
	return cfg, nil
}

// unquote strips one pair of matching quotes around a value.
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
