// Package config loads geoarray settings from YAML.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chazu/geoarray/pkg/backend"
	"github.com/chazu/geoarray/pkg/errors"
)

// Config is the top-level configuration.
type Config struct {
	Kernel   string         `yaml:"kernel"`
	Log      LogConfig      `yaml:"log"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Script   ScriptConfig   `yaml:"script"`
	Store    StoreConfig    `yaml:"store"`
	Sdfx     SdfxConfig     `yaml:"sdfx"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DispatchConfig controls partitioned parallel calls.
type DispatchConfig struct {
	// Workers is the number of partitions; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
	// MinPartition is the smallest batch worth splitting.
	MinPartition int `yaml:"min_partition"`
}

// ScriptConfig controls script evaluation.
type ScriptConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig locates the dataset store. An empty path keeps it in memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SdfxConfig tunes the sdfx kernel.
type SdfxConfig struct {
	Cells int `yaml:"cells"`
}

// Default returns the built-in configuration.
//
// Defaults:
//   - Kernel: planar
//   - Log: info, production encoder
//   - Dispatch: GOMAXPROCS workers, partitions of at least 1024
//   - Script timeout: 5 seconds
//   - Store: in memory
//   - Sdfx: 64 cells per axis
func Default() *Config {
	return &Config{
		Kernel:   backend.Planar,
		Log:      LogConfig{Level: "info"},
		Dispatch: DispatchConfig{Workers: 0, MinPartition: 1024},
		Script:   ScriptConfig{Timeout: 5 * time.Second},
		Sdfx:     SdfxConfig{Cells: 64},
	}
}

// Load reads and validates the file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read "+path)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "decode yaml")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if !slices.Contains(backend.Names(), c.Kernel) {
		return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("kernel %q is not one of %v", c.Kernel, backend.Names()))
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	if c.Dispatch.Workers < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "dispatch.workers must not be negative")
	}
	if c.Dispatch.MinPartition < 1 {
		return errors.InvalidInput(errors.PhaseConfig, "dispatch.min_partition must be positive")
	}
	if c.Script.Timeout <= 0 {
		return errors.InvalidInput(errors.PhaseConfig, "script.timeout must be positive")
	}
	if c.Sdfx.Cells < 4 {
		return errors.InvalidInput(errors.PhaseConfig, "sdfx.cells must be at least 4")
	}
	return nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Logger builds the zap logger described by the log section.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(l.Level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}

// BackendOptions returns the kernel options the config implies.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{SdfxCells: c.Sdfx.Cells}
}
