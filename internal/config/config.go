// Package config loads the tool configuration file.
//
// All commands run fine without a config file; the file exists so a
// working directory can pin its data root, database location, and driver
// budgets once instead of repeating flags.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/exhume/internal/host"
)

// DefaultFileName is looked up in the working directory when no explicit
// path is given.
const DefaultFileName = "exhume.yaml"

// Config is the top-level tool configuration.
type Config struct {
	// DataRoot points at the decompiled script tree.
	DataRoot string `yaml:"data_root"`

	// Database is the SQLite path for persisted runs.
	// Empty disables persistence.
	Database string `yaml:"database,omitempty"`

	// ClassifyOverlay is an optional CUE file extending the subsystem
	// method tables.
	ClassifyOverlay string `yaml:"classify_overlay,omitempty"`

	Host   HostConfig   `yaml:"host,omitempty"`
	Stream StreamConfig `yaml:"stream,omitempty"`
}

// HostConfig bounds the cooperative script driver.
type HostConfig struct {
	// BootPasses is the round-robin pass ceiling for the boot drive.
	BootPasses int `yaml:"boot_passes,omitempty"`

	// NudgePasses is the pass ceiling for interactive nudges.
	NudgePasses int `yaml:"nudge_passes,omitempty"`

	// YieldBudget is the per-script yield ceiling within one drive.
	YieldBudget int `yaml:"yield_budget,omitempty"`
}

// StreamConfig configures the live viewer endpoint.
type StreamConfig struct {
	// Addr is the listen address. Empty disables streaming.
	Addr string `yaml:"addr,omitempty"`

	// Build is advertised in the stream handshake.
	Build string `yaml:"build,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Host: HostConfig{
			BootPasses:  host.DefaultBootPasses,
			NudgePasses: host.DefaultNudgePasses,
			YieldBudget: host.DefaultYieldBudget,
		},
	}
}

// Load reads and parses a config file. Unknown fields are rejected so
// typos fail loudly. Relative paths resolve against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	cfg.DataRoot = resolvePath(base, cfg.DataRoot)
	cfg.Database = resolvePath(base, cfg.Database)
	cfg.ClassifyOverlay = resolvePath(base, cfg.ClassifyOverlay)

	if err := validate(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when it exists, otherwise returns Default.
// An empty path looks for DefaultFileName in the working directory.
func LoadOrDefault(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return Config{}, fmt.Errorf("config file %s does not exist", path)
		}
		return Default(), nil
	}
	return Load(path)
}

func validate(cfg *Config) error {
	if cfg.Host.BootPasses <= 0 {
		return fmt.Errorf("host.boot_passes must be positive")
	}
	if cfg.Host.NudgePasses <= 0 {
		return fmt.Errorf("host.nudge_passes must be positive")
	}
	if cfg.Host.YieldBudget <= 0 {
		return fmt.Errorf("host.yield_budget must be positive")
	}
	return nil
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
