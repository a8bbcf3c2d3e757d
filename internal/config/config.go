package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds engine-wide limits and switches. It is usually embedded in a
// host's own configuration file under a "types" key, but can be loaded on its
// own with Load.
type Config struct {
	// MaxParents is the maximum number of direct supers a class may declare.
	// Defaults to DefaultMaxParents.
	MaxParents int `yaml:"max_parents,omitempty"`

	// MaxForeignSupers bounds the super chain of a foreign type.
	// Defaults to DefaultMaxForeignSupers.
	MaxForeignSupers int `yaml:"max_foreign_supers,omitempty"`

	// MatchCache enables memoization of match grades for pairs of fully
	// resolved, non-interface types.
	MatchCache bool `yaml:"match_cache"`

	// LogLevel is one of "debug", "info", "warn", "error". Empty means "warn".
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when none is supplied.
func Default() Config {
	return Config{
		MaxParents:       DefaultMaxParents,
		MaxForeignSupers: DefaultMaxForeignSupers,
		MatchCache:       true,
		LogLevel:         "warn",
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes YAML configuration data. path is only used in error messages.
func Parse(data []byte, path string) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.MaxParents == 0 {
		c.MaxParents = DefaultMaxParents
	}
	if c.MaxForeignSupers == 0 {
		c.MaxForeignSupers = DefaultMaxForeignSupers
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MaxParents < 0 {
		return fmt.Errorf("max_parents must not be negative, got %d", c.MaxParents)
	}
	if c.MaxForeignSupers < 0 {
		return fmt.Errorf("max_foreign_supers must not be negative, got %d", c.MaxForeignSupers)
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to warn.
func (c Config) SlogLevel() slog.Level {
	lvl, ok := parseLevel(c.LogLevel)
	if !ok {
		return slog.LevelWarn
	}
	return lvl
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "", "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelWarn, false
}
