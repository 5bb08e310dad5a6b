package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidExtension indicates an extension without a leading dot
	ErrInvalidExtension = errors.New("invalid extension")

	// ErrInvalidDuration indicates a non-positive or negative duration
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrEmptyValue indicates a required value is missing
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidStyle indicates an unsupported compiler output style
	ErrInvalidStyle = errors.New("invalid output style")

	// ErrInvalidTTL indicates a watch TTL that is neither minutes nor "*"
	ErrInvalidTTL = errors.New("invalid watch ttl")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateSources(&cfg.Sources); err != nil {
		errs = append(errs, err)
	}
	if err := validateGate(&cfg.Gate); err != nil {
		errs = append(errs, err)
	}
	if err := validateCompiler(&cfg.Compiler); err != nil {
		errs = append(errs, err)
	}
	if err := validateWatch(&cfg.Watch); err != nil {
		errs = append(errs, err)
	}
	if err := validateHistory(&cfg.History); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateSources(cfg *SourcesConfig) error {
	var errs []error

	for _, ext := range []struct{ key, value string }{
		{"extension", cfg.Extension},
		{"target_extension", cfg.TargetExtension},
	} {
		if len(ext.value) < 2 || !strings.HasPrefix(ext.value, ".") {
			errs = append(errs, fmt.Errorf("%w: sources.%s must start with '.', got '%s'", ErrInvalidExtension, ext.key, ext.value))
		}
	}
	if cfg.Extension == cfg.TargetExtension {
		errs = append(errs, fmt.Errorf("%w: source and target extensions must differ", ErrInvalidExtension))
	}
	if strings.TrimSpace(cfg.Sentinel) == "" {
		errs = append(errs, fmt.Errorf("%w: sources.sentinel is required", ErrEmptyValue))
	}

	// An empty partial prefix is allowed and disables partial detection

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateGate(cfg *GateConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Dir) == "" {
		errs = append(errs, fmt.Errorf("%w: gate.dir is required", ErrEmptyValue))
	}
	if cfg.StaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("%w: gate.stale_after must be positive, got %s", ErrInvalidDuration, cfg.StaleAfter))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateCompiler(cfg *CompilerConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Binary) == "" {
		errs = append(errs, fmt.Errorf("%w: compiler.binary is required", ErrEmptyValue))
	}
	style := strings.ToLower(cfg.Style)
	if style != "compressed" && style != "expanded" {
		errs = append(errs, fmt.Errorf("%w: must be 'compressed' or 'expanded', got '%s'", ErrInvalidStyle, cfg.Style))
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: compiler.timeout must be positive, got %s", ErrInvalidDuration, cfg.Timeout))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateWatch(cfg *WatchConfig) error {
	var errs []error

	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: watch.poll_interval must be positive, got %s", ErrInvalidDuration, cfg.PollInterval))
	}
	ttl := strings.TrimSpace(cfg.TTL)
	if ttl != "*" {
		if n, err := strconv.Atoi(ttl); err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%w: want positive minutes or '*', got '%s'", ErrInvalidTTL, cfg.TTL))
		}
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateHistory(cfg *HistoryConfig) error {
	if cfg.Enabled && strings.TrimSpace(cfg.Path) == "" {
		return fmt.Errorf("%w: history.path is required when history is enabled", ErrEmptyValue)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
