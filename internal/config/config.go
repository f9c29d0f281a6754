// Package config loads thunderfit settings from a YAML file and environment
// variables. Environment values override the file; flags override both.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Compute ComputeConfig `yaml:"compute"`
	Parse   ParseConfig   `yaml:"parse"`
	Logging LoggingConfig `yaml:"logging"`
	// ExportDir is where Export writes run artifacts.
	ExportDir string `yaml:"export_dir"`
}

type StoreConfig struct {
	// Kind is "memory" or "sqlite".
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type ComputeConfig struct {
	Workers    int `yaml:"workers"`
	Partitions int `yaml:"partitions"`
	// Seed fixes the shuffle test when set.
	Seed *int64 `yaml:"seed,omitempty"`
}

type ParseConfig struct {
	// Filter is "raw", "dff" or "sub".
	Filter string `yaml:"filter"`
	// Keys is "none", "xyz" or "linear".
	Keys string `yaml:"keys"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Store:     StoreConfig{Kind: "memory", Path: "thunderfit.db"},
		Parse:     ParseConfig{Filter: "raw", Keys: "none"},
		Logging:   LoggingConfig{Level: "info"},
		ExportDir: "exports",
	}
}

// Load reads path when non-empty, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("THUNDERFIT_STORE"); v != "" {
		c.Store.Kind = v
	}
	if v := os.Getenv("THUNDERFIT_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("THUNDERFIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("THUNDERFIT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("THUNDERFIT_WORKERS: %w", err)
		}
		c.Compute.Workers = n
	}
	if v := os.Getenv("THUNDERFIT_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("THUNDERFIT_SEED: %w", err)
		}
		c.Compute.Seed = &n
	}
	return nil
}

// Validate normalizes the store kind to lower case and checks the settings.
func (c *Config) Validate() error {
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	switch c.Store.Kind {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Kind)
	}
	if c.Compute.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Compute.Workers)
	}
	if c.Compute.Partitions < 0 {
		return fmt.Errorf("partitions must be >= 0, got %d", c.Compute.Partitions)
	}
	return nil
}

// Marshal renders the effective configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
