// Package config loads harmonia configuration from YAML: engine
// thresholds, the canonical category table with aliases, authored
// fallback templates, and logging/store settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"harmonia/internal/types"
)

// Config holds all harmonia configuration.
type Config struct {
	// Engine thresholds and mode
	Engine EngineConfig `yaml:"engine"`

	// Canonical category table
	Categories []CategoryConfig `yaml:"categories"`

	// Authored fallback templates, keyed by canonical category name
	Templates map[string][]string `yaml:"templates"`

	// Corpus store settings
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig mirrors types.AbstractionConfig in YAML form.
type EngineConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ComplexityCeiling   float64 `yaml:"complexity_ceiling"`
	PreservationFloor   float64 `yaml:"preservation_floor"`
	Mode                string  `yaml:"mode"` // strict, smart, template-only
	FallbackStrategy    string  `yaml:"fallback_strategy"`
	Workers             int     `yaml:"workers"`
}

// CategoryConfig is one canonical category plus its accepted aliases.
type CategoryConfig struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// StoreConfig configures the SQLite corpus store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Directory string `yaml:"directory"`
	Level     string `yaml:"level"`
}

// DefaultConfig returns the documented defaults with an empty category
// table.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			SimilarityThreshold: 0.75,
			ComplexityCeiling:   1.3,
			PreservationFloor:   0.95,
			Mode:                string(types.ModeSmart),
			FallbackStrategy:    "authored-then-generic",
			Workers:             4,
		},
		Templates: make(map[string][]string),
		Store:     StoreConfig{DatabasePath: "harmonia.db"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// FromEnv returns defaults with environment overrides applied, for
// file-less operation.
func FromEnv() *Config {
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	return cfg
}

// Load reads configuration from a YAML file, layering it over defaults
// and applying environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values, for
// file-less operation in CI and containers.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HARMONIA_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("HARMONIA_COMPLEXITY_CEILING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.ComplexityCeiling = f
		}
	}
	if v := os.Getenv("HARMONIA_MODE"); v != "" {
		c.Engine.Mode = v
	}
	if v := os.Getenv("HARMONIA_DB"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("HARMONIA_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// Validate rejects malformed configuration. Threshold validation is
// delegated to the engine config so the rules live in one place.
func (c *Config) Validate() error {
	if err := c.Abstraction().Validate(); err != nil {
		return err
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: workers %d negative", types.ErrConfigurationInvalid, c.Engine.Workers)
	}
	seen := make(map[string]bool)
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("%w: category with empty name", types.ErrConfigurationInvalid)
		}
		if seen[cat.Name] {
			return fmt.Errorf("%w: duplicate canonical category %q", types.ErrConfigurationInvalid, cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// Abstraction converts the YAML engine section to the run-scoped engine
// configuration.
func (c *Config) Abstraction() types.AbstractionConfig {
	return types.AbstractionConfig{
		SimilarityThreshold: c.Engine.SimilarityThreshold,
		ComplexityCeiling:   c.Engine.ComplexityCeiling,
		PreservationFloor:   c.Engine.PreservationFloor,
		Mode:                types.AbstractionMode(c.Engine.Mode),
		FallbackStrategy:    c.Engine.FallbackStrategy,
	}
}

// CanonicalCategories converts the category table to engine types.
func (c *Config) CanonicalCategories() []types.UnifiedCategory {
	out := make([]types.UnifiedCategory, 0, len(c.Categories))
	for _, cat := range c.Categories {
		out = append(out, types.UnifiedCategory{Name: cat.Name, Aliases: cat.Aliases})
	}
	return out
}
