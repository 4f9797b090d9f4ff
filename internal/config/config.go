// Package config provides configuration management for geocore: loading
// engine-wide tunables from YAML with environment-variable overrides, in
// the style of the teacher's internal/config package.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	geoerrors "github.com/arxgeo/geocore/pkg/errors"
)

// Config is the complete engine configuration.
type Config struct {
	// Authority settings (C5 AuthorityCache).
	Authority AuthorityConfig `yaml:"authority"`

	// Grid settings (C2 ShiftGrid).
	Grid GridConfig `yaml:"grid"`

	// Pipeline settings (C4 TransformPipeline).
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// AuthorityConfig tunes the session pool and object cache.
type AuthorityConfig struct {
	MaxConcurrentSessions int           `yaml:"max_concurrent_sessions"`
	IdleTimeout           time.Duration `yaml:"idle_timeout"`
}

// GridConfig tunes the grid cache.
type GridConfig struct {
	CacheBudgetBytes   int64   `yaml:"cache_budget_bytes"`
	CompressionScale   float64 `yaml:"compression_scale"`
}

// PipelineConfig tunes pipeline assembly.
type PipelineConfig struct {
	EllipsoidMismatchToleranceMetres float64 `yaml:"ellipsoid_mismatch_tolerance_metres"`
}

// Default returns the engine's default configuration, matching the
// defaults named in spec.md §4.5/§5 (maxConcurrent session pool, 60s idle
// timeout; the 200ms poll resolution is a session-pool constant, not a
// tunable).
func Default() Config {
	return Config{
		Authority: AuthorityConfig{
			MaxConcurrentSessions: 10,
			IdleTimeout:           60 * time.Second,
		},
		Grid: GridConfig{
			CacheBudgetBytes: 256 << 20,
			CompressionScale: 0.00001,
		},
		Pipeline: PipelineConfig{
			EllipsoidMismatchToleranceMetres: 0.01,
		},
	}
}

// Load reads a YAML config file at path, falling back to Default() for
// any field the file leaves zero-valued, then applies environment
// overrides via ApplyEnv. A missing path is not an error: Load returns
// Default() with environment overrides applied, mirroring the teacher's
// "config file is optional, environment always wins" loader behavior.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return ApplyEnv(cfg), nil
			}
			return Config{}, geoerrors.Wrap(geoerrors.CodeMissingResource, "config: failed to read file", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, geoerrors.Wrap(geoerrors.CodeInvalidInput, "config: failed to parse YAML", err)
		}
	}
	return ApplyEnv(cfg), nil
}

// ApplyEnv overlays environment-variable overrides onto cfg, in the
// teacher's GEOCORE_* naming convention.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("GEOCORE_MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Authority.MaxConcurrentSessions = n
		}
	}
	if v := os.Getenv("GEOCORE_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Authority.IdleTimeout = d
		}
	}
	if v := os.Getenv("GEOCORE_GRID_CACHE_BUDGET_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Grid.CacheBudgetBytes = n
		}
	}
	return cfg
}
