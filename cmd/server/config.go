// Package main provides the QueryWatch server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Sources   SourcesConfig   `yaml:"sources"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Verbose   bool            `yaml:"-"` // set via CLI flag
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Address        string `yaml:"address"`           // HTTP listen address (default: :8080)
	APIToken       string `yaml:"api_token"`         // pre-shared bearer token; empty disables auth
	RateLimitPerIP int    `yaml:"rate_limit_per_ip"` // requests per minute per client IP
}

// DatabaseConfig contains metadata store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// SourcesConfig bounds interactions with registered data sources.
type SourcesConfig struct {
	DialTimeout time.Duration `yaml:"dial_timeout"` // connect/probe timeout
	ExecTimeout time.Duration `yaml:"exec_timeout"` // single query execution timeout
}

// SchedulerConfig controls the cron scheduler.
type SchedulerConfig struct {
	Enabled *bool `yaml:"enabled"` // default true
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RateLimitPerIP == 0 {
		c.Server.RateLimitPerIP = 300
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/querywatch.db"
	}
	if c.Sources.DialTimeout == 0 {
		c.Sources.DialTimeout = 5 * time.Second
	}
	if c.Sources.ExecTimeout == 0 {
		c.Sources.ExecTimeout = 30 * time.Second
	}
}

// SchedulerEnabled reports whether the cron scheduler should run.
func (c *Config) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Sources.DialTimeout < 0 {
		return fmt.Errorf("sources.dial_timeout must not be negative")
	}
	if c.Sources.ExecTimeout < 0 {
		return fmt.Errorf("sources.exec_timeout must not be negative")
	}
	return nil
}
