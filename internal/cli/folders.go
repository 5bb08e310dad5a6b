package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ParseFolders splits a comma separated folder list. Surrounding braces are
// stripped, entries are trimmed and empty entries dropped.
func ParseFolders(list string) []string {
	list = strings.TrimSpace(list)
	list = strings.TrimPrefix(list, "{")
	list = strings.TrimSuffix(list, "}")

	var folders []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			folders = append(folders, f)
		}
	}
	return folders
}

// resolveFolders makes relative folders absolute against base, or against
// the working directory when base is empty.
func resolveFolders(base string, folders []string) ([]string, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	resolved := make([]string, 0, len(folders))
	for _, f := range folders {
		if !filepath.IsAbs(f) {
			f = filepath.Join(base, f)
		}
		resolved = append(resolved, filepath.Clean(f))
	}
	return resolved, nil
}
