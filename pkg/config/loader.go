package config

import (
	"fmt"
	"math"
	"os"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks a programmatically built configuration
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	return validateConfig(cfg)
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	if !finite(cfg.Target) {
		return fmt.Errorf("target must be finite, got %v", cfg.Target)
	}
	if !finite(cfg.BaseScale) || cfg.BaseScale == 0 {
		return fmt.Errorf("base_scale must be finite and non-zero, got %v", cfg.BaseScale)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", cfg.Workers)
	}

	if err := validateAxes(cfg.Axes); err != nil {
		return fmt.Errorf("axes validation failed: %w", err)
	}
	if cfg.ShardAxis < 0 || cfg.ShardAxis >= len(cfg.Axes) {
		return fmt.Errorf("shard_axis must be between 0 and %d, got %d", len(cfg.Axes)-1, cfg.ShardAxis)
	}

	if cfg.Tolerance != nil {
		if err := validateTolerance(cfg.Tolerance, cfg.Target); err != nil {
			return fmt.Errorf("tolerance validation failed: %w", err)
		}
	}

	return nil
}

// validateAxes requires exactly four non-empty, uniquely named axes whose
// combined point count fits in an int64
func validateAxes(axes []Axis) error {
	if len(axes) != 4 {
		return fmt.Errorf("exactly 4 axes must be defined, got %d", len(axes))
	}
	size := uint64(1)
	names := make(map[string]bool)
	for i, a := range axes {
		if a.Name != "" {
			if names[a.Name] {
				return fmt.Errorf("duplicate axis name: %s", a.Name)
			}
			names[a.Name] = true
		}
		if a.Min > a.Max {
			return fmt.Errorf("axis %d (%s): min %d exceeds max %d", i, a.Name, a.Min, a.Max)
		}
		span := uint64(a.Max) - uint64(a.Min)
		if span >= math.MaxInt64 {
			return fmt.Errorf("axis %d (%s): range [%d, %d] is too wide", i, a.Name, a.Min, a.Max)
		}
		if size > math.MaxInt64/(span+1) {
			return fmt.Errorf("axis %d (%s): search space has more than %d points", i, a.Name, int64(math.MaxInt64))
		}
		size *= span + 1
	}
	return nil
}

func validateTolerance(t *Tolerance, target float64) error {
	if t.Window < 0 || t.Window >= 1 || math.IsNaN(t.Window) {
		return fmt.Errorf("window must be in [0, 1), got %v", t.Window)
	}
	if t.Window > 0 && target == 0 {
		return fmt.Errorf("a relative window needs a non-zero target")
	}
	if t.Widen {
		if t.Window == 0 {
			return fmt.Errorf("widen requires a positive window")
		}
		if t.MaxWindow < t.Window {
			return fmt.Errorf("max_window %v must not be below window %v", t.MaxWindow, t.Window)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
