// Package config provides configuration loading and management for dconnresample.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"dconnresample/pkg/logging"
	"dconnresample/pkg/resample"
	"dconnresample/pkg/volume"
)

// Config represents the application configuration loaded from YAML or TOML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores" toml:"num_cores"`
	} `yaml:"processing" toml:"processing"`

	// Surface resampling parameters
	Surface struct {
		// Method is ADAP_BARY_AREA or BARYCENTRIC
		Method resample.SurfaceMethod `yaml:"method" toml:"method"`

		// Largest uses only the source vertex with the largest weight
		Largest bool `yaml:"largest" toml:"largest"`

		// DilateMM is the default post-resampling dilation radius in mm.
		// When set it must be positive.
		DilateMM *float64 `yaml:"dilateMM,omitempty" toml:"dilate_mm,omitempty"`
	} `yaml:"surface" toml:"surface"`

	// Volume resampling parameters
	Volume struct {
		// Method is CUBIC, TRILINEAR or ENCLOSING_VOXEL
		Method volume.Method `yaml:"method" toml:"method"`

		// DilateMM is the default pre-resampling dilation radius in mm.
		// When set it must be positive.
		DilateMM *float64 `yaml:"dilateMM,omitempty" toml:"dilate_mm,omitempty"`
	} `yaml:"volume" toml:"volume"`

	// Logging controls where log messages go
	Logging logging.Config `yaml:"logging" toml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default resampling parameters
	cfg.Surface.Method = resample.AdapBaryArea
	cfg.Volume.Method = volume.Cubic

	// Set default logging parameters
	cfg.Logging.MaxSize = 100
	cfg.Logging.MaxAge = 7

	return cfg
}

// isTOML reports whether a path names a TOML file
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML file, or a TOML file when the
// path ends in .toml. If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate checks values that cannot be checked while parsing.
func (c *Config) Validate() error {
	if c.Surface.DilateMM != nil && *c.Surface.DilateMM <= 0 {
		return fmt.Errorf("%w: surface dilateMM must be positive, got %g", resample.InvalidDilationRadius, *c.Surface.DilateMM)
	}
	if c.Volume.DilateMM != nil && *c.Volume.DilateMM <= 0 {
		return fmt.Errorf("%w: volume dilateMM must be positive, got %g", resample.InvalidDilationRadius, *c.Volume.DilateMM)
	}
	if !c.Surface.Method.Valid() {
		return fmt.Errorf("%w: surface method %s", resample.UnsupportedInterpolationMethod, c.Surface.Method)
	}
	if !c.Volume.Method.Valid() {
		return fmt.Errorf("%w: volume method %s", resample.UnsupportedInterpolationMethod, c.Volume.Method)
	}
	return nil
}

// SurfaceDilation returns the default surface dilation radius, zero if unset.
func (c *Config) SurfaceDilation() float64 {
	if c.Surface.DilateMM == nil {
		return 0
	}
	return *c.Surface.DilateMM
}

// VolumeDilation returns the default volume dilation radius, zero if unset.
func (c *Config) VolumeDilation() float64 {
	if c.Volume.DilateMM == nil {
		return 0
	}
	return *c.Volume.DilateMM
}

// Options returns the engine options described by the configuration.
func (c *Config) Options(log logging.Logger, progress resample.ProgressFunc) resample.Options {
	return resample.Options{
		SurfaceMethod:  c.Surface.Method,
		SurfaceLargest: c.Surface.Largest,
		Workers:        c.Processing.NumCores,
		Progress:       progress,
		Logger:         log,
	}
}

// SaveConfig saves the configuration to a YAML file, or a TOML file when the
// path ends in .toml
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = []byte(b.String())
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
