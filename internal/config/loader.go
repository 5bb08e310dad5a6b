package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SASSWATCH_*)
// 2. Config file (path if given, otherwise ~/.sasswatch/config.yml)
// 3. Default values
//
// A missing default config file is not an error. A missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(Dir())
	}

	// Replace . with _ in env var names (e.g., SASSWATCH_COMPILER_BINARY)
	v.SetEnvPrefix("SASSWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// bindEnvVars binds the scalar keys so env overrides reach Unmarshal.
func bindEnvVars(v *viper.Viper) {
	// Sources
	v.BindEnv("sources.extension")
	v.BindEnv("sources.target_extension")
	v.BindEnv("sources.sentinel")
	v.BindEnv("sources.partial_prefix")
	v.BindEnv("sources.literal_rename")

	// Gate
	v.BindEnv("gate.dir")
	v.BindEnv("gate.stale_after")

	// Compiler
	v.BindEnv("compiler.binary")
	v.BindEnv("compiler.style")
	v.BindEnv("compiler.timeout")

	// Watch
	v.BindEnv("watch.poll_interval")
	v.BindEnv("watch.buffer")
	v.BindEnv("watch.ttl")

	// History
	v.BindEnv("history.enabled")
	v.BindEnv("history.path")
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("sources.extension", defaults.Sources.Extension)
	v.SetDefault("sources.target_extension", defaults.Sources.TargetExtension)
	v.SetDefault("sources.sentinel", defaults.Sources.Sentinel)
	v.SetDefault("sources.partial_prefix", defaults.Sources.PartialPrefix)
	v.SetDefault("sources.ignore", defaults.Sources.Ignore)
	v.SetDefault("sources.literal_rename", defaults.Sources.LiteralRename)

	v.SetDefault("gate.dir", defaults.Gate.Dir)
	v.SetDefault("gate.stale_after", defaults.Gate.StaleAfter)

	v.SetDefault("compiler.binary", defaults.Compiler.Binary)
	v.SetDefault("compiler.style", defaults.Compiler.Style)
	v.SetDefault("compiler.load_paths", defaults.Compiler.LoadPaths)
	v.SetDefault("compiler.timeout", defaults.Compiler.Timeout)

	v.SetDefault("watch.poll_interval", defaults.Watch.PollInterval)
	v.SetDefault("watch.buffer", defaults.Watch.Buffer)
	v.SetDefault("watch.ttl", defaults.Watch.TTL)

	v.SetDefault("history.enabled", defaults.History.Enabled)
	v.SetDefault("history.path", defaults.History.Path)
}
