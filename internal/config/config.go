package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the config file riskbook looks for in its working directory.
const FileName = "riskbook.yaml"

// Config represents the top-level riskbook.yaml configuration. Every key can
// be overridden with a RISKBOOK_* environment variable, which wins over the
// file.
type Config struct {
	Listen     string         `yaml:"listen" env:"RISKBOOK_LISTEN"`
	CORSOrigin string         `yaml:"cors_origin" env:"RISKBOOK_CORS_ORIGIN"`
	Timezone   string         `yaml:"timezone" env:"RISKBOOK_TIMEZONE"`
	MetricsTTL time.Duration  `yaml:"metrics_ttl" env:"RISKBOOK_METRICS_TTL"`
	Database   DatabaseConfig `yaml:"database"`
	Auth       AuthConfig     `yaml:"auth"`
}

// DatabaseConfig selects the storage engine.
type DatabaseConfig struct {
	Engine string `yaml:"engine" env:"RISKBOOK_DB_ENGINE"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn" env:"RISKBOOK_DB_DSN"`
}

// AuthConfig controls JWT issuance.
type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"RISKBOOK_AUTH_SECRET"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"RISKBOOK_AUTH_TOKEN_TTL"`
}

// Load reads a riskbook.yaml file from disk and applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new install: a local
// sqlite database next to the config file and a generated-later auth secret.
func Default() *Config {
	return &Config{
		Listen:     ":8080",
		CORSOrigin: "*",
		Timezone:   "UTC",
		MetricsTTL: 30 * time.Second,
		Database: DatabaseConfig{
			Engine: "sqlite",
			DSN:    "riskbook.db",
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
	}
}

// Location resolves the configured evaluation-day timezone. An empty value
// means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
