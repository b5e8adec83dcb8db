// Package config loads and validates the optional .certify YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for runner configuration.
const (
	DefaultTimeout   = 5 * time.Minute
	DefaultMaxOutput = 1 << 20 // 1 MB
)

// Default commands for the external listings tools.
const (
	DefaultValidateFile = "tv-validate-file"
	DefaultCat          = "tv-cat"
	DefaultSort         = "tv-sort"
)

// Config holds the parsed .certify configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int         `yaml:"version"`
	RawTimeout   string      `yaml:"timeout"`    // e.g. "5m", "30s"
	RawMaxOutput int         `yaml:"max_output"` // bytes
	Tools        ToolsConfig `yaml:"tools"`
}

// ToolsConfig names the external listings tools the pipeline calls out to.
type ToolsConfig struct {
	ValidateFile string `yaml:"validate_file"` // XML listings file validator
	Cat          string `yaml:"cat"`           // listings concatenator
	Sort         string `yaml:"sort"`          // listings sorter / duplicate detector
}

// Timeout returns the configured per-invocation timeout or the default.
// The same bound applies uniformly to every subprocess invocation.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutputBytes returns the configured max captured output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// ValidateFileCommand returns the configured file validator command or the default.
func (c *Config) ValidateFileCommand() string {
	if c.Tools.ValidateFile != "" {
		return c.Tools.ValidateFile
	}
	return DefaultValidateFile
}

// CatCommand returns the configured concatenator command or the default.
func (c *Config) CatCommand() string {
	if c.Tools.Cat != "" {
		return c.Tools.Cat
	}
	return DefaultCat
}

// SortCommand returns the configured sorter command or the default.
func (c *Config) SortCommand() string {
	if c.Tools.Sort != "" {
		return c.Tools.Sort
	}
	return DefaultSort
}

// Load reads the .certify file discovered by walking upward from dir.
// If no .certify file exists, a default Config is returned.
func Load(dir string) (*Config, error) {
	path, err := findFile(dir)
	if err != nil {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading .certify: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing .certify: %w", err)
	}
	return cfg, nil
}

// findFile walks upward from dir looking for a .certify file.
func findFile(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, ".certify")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf(".certify not found")
		}
		dir = parent
	}
}
