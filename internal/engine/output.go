package engine

import (
	"os"
	"path/filepath"
	"strings"
)

// targetName derives the output file name from a source file name.
func (c Conventions) targetName(name string) string {
	if c.LiteralRename {
		from := strings.TrimPrefix(c.Extension, ".")
		to := strings.TrimPrefix(c.TargetExtension, ".")
		return strings.ReplaceAll(name, from, to)
	}
	return strings.TrimSuffix(name, c.Extension) + c.TargetExtension
}

// isCandidate reports whether an entry should be compiled standalone.
// The extension comparison is exact and the partial check is a plain prefix
// test on the file name.
func (c Conventions) isCandidate(name string, regular bool) bool {
	if !regular {
		return false
	}
	if filepath.Ext(name) != c.Extension {
		return false
	}
	return c.PartialPrefix == "" || !strings.HasPrefix(name, c.PartialPrefix)
}

// resolveTarget returns the output path for a source file and the directory
// that must exist before writing it.
func (c Conventions) resolveTarget(dir, name string, cfg *DirConfig) (target, outDir string) {
	outDir = dir
	if cfg != nil {
		if sub := cfg.CSSDir(); sub != "" {
			outDir = filepath.Join(dir, sub)
		}
	}
	return filepath.Join(outDir, c.targetName(name)), outDir
}

// writeOutput replaces target with css atomically so watchers never observe
// a partial stylesheet.
func writeOutput(target, css string) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(css); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		// Clean up temp file on failure
		os.Remove(tmpPath)
		return err
	}
	return nil
}
