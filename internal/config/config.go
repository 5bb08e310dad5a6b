package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config represents the complete sasswatch configuration.
// It can be loaded from ~/.sasswatch/config.yml with environment variable overrides.
type Config struct {
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Gate     GateConfig     `yaml:"gate" mapstructure:"gate"`
	Compiler CompilerConfig `yaml:"compiler" mapstructure:"compiler"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	History  HistoryConfig  `yaml:"history" mapstructure:"history"`
}

// SourcesConfig defines which files are compiled and where output goes.
type SourcesConfig struct {
	Extension       string   `yaml:"extension" mapstructure:"extension"`               // e.g. ".scss"
	TargetExtension string   `yaml:"target_extension" mapstructure:"target_extension"` // e.g. ".css"
	Sentinel        string   `yaml:"sentinel" mapstructure:"sentinel"`                 // per-directory config file name
	PartialPrefix   string   `yaml:"partial_prefix" mapstructure:"partial_prefix"`     // files never compiled standalone
	Ignore          []string `yaml:"ignore" mapstructure:"ignore"`                     // glob patterns relative to a root
	LiteralRename   bool     `yaml:"literal_rename" mapstructure:"literal_rename"`     // legacy substring rename
}

// GateConfig locates the compile gate markers.
type GateConfig struct {
	Dir        string        `yaml:"dir" mapstructure:"dir"`
	StaleAfter time.Duration `yaml:"stale_after" mapstructure:"stale_after"`
}

// CompilerConfig configures the external Sass compiler.
type CompilerConfig struct {
	Binary    string        `yaml:"binary" mapstructure:"binary"`
	Style     string        `yaml:"style" mapstructure:"style"` // "compressed" or "expanded"
	LoadPaths []string      `yaml:"load_paths" mapstructure:"load_paths"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"` // per file
}

// WatchConfig configures the watch loop.
type WatchConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	Buffer       uint          `yaml:"buffer" mapstructure:"buffer"`
	TTL          string        `yaml:"ttl" mapstructure:"ttl"` // minutes, or "*" for no limit
}

// HistoryConfig configures the compile history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// Default returns a configuration with sensible defaults. Paths under the
// user's home fall back to the temp directory when home is unknown.
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			Extension:       ".scss",
			TargetExtension: ".css",
			Sentinel:        "libsass.ini",
			PartialPrefix:   "_",
			Ignore:          []string{},
		},
		Gate: GateConfig{
			Dir:        os.TempDir(),
			StaleAfter: 5 * time.Minute,
		},
		Compiler: CompilerConfig{
			Binary:    "sass",
			Style:     "compressed",
			LoadPaths: []string{},
			Timeout:   30 * time.Second,
		},
		Watch: WatchConfig{
			PollInterval: time.Second,
			Buffer:       256,
			TTL:          "60",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(Dir(), "history.db"),
		},
	}
}

// Dir returns ~/.sasswatch.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sasswatch")
	}
	return filepath.Join(home, ".sasswatch")
}
