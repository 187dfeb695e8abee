package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete replicator configuration
type Config struct {
	Server Server `json:"server" yaml:"server"`
	Venue  Venue  `json:"venue" yaml:"venue"`
	Redis  Redis  `json:"redis" yaml:"redis"`
	Ledger Ledger `json:"ledger" yaml:"ledger"`
	Engine Engine `json:"engine" yaml:"engine"`
}

// Server contains HTTP listener parameters
type Server struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Venue contains upstream brokerage API parameters
type Venue struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "15s"
	Retries int    `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// ParseTimeout converts the timeout string to time.Duration
func (v Venue) ParseTimeout() (time.Duration, error) {
	if v.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(v.Timeout)
}

// Redis contains the follower registry connection parameters
type Redis struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// Ledger contains persistence parameters
type Ledger struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// Engine contains replication fan-out parameters
type Engine struct {
	Workers      int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	PollInterval string `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"` // e.g. "10s"
	AutoStart    bool   `json:"auto_start,omitempty" yaml:"auto_start,omitempty"`
}

// ParsePollInterval converts the poll interval string to time.Duration
func (e Engine) ParsePollInterval() (time.Duration, error) {
	if e.PollInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(e.PollInterval)
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Venue.BaseURL == "" {
		return fmt.Errorf("venue.base_url is required")
	}
	if _, err := c.Venue.ParseTimeout(); err != nil {
		return fmt.Errorf("venue.timeout: %w", err)
	}
	if c.Venue.Retries < 0 {
		return fmt.Errorf("venue.retries must not be negative")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}
	if c.Ledger.DBPath == "" {
		return fmt.Errorf("ledger.db_path is required")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must not be negative")
	}
	if _, err := c.Engine.ParsePollInterval(); err != nil {
		return fmt.Errorf("engine.poll_interval: %w", err)
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: Server{Addr: ":8080"},
		Venue: Venue{
			BaseURL: "http://localhost:9000",
			Timeout: "15s",
			Retries: 3,
		},
		Redis:  Redis{Addr: "localhost:6379"},
		Ledger: Ledger{DBPath: "./replicator.db"},
		Engine: Engine{
			Workers:      4,
			PollInterval: "10s",
		},
	}
}
