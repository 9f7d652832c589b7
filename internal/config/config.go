// Package config loads process configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Query   QueryConfig   `yaml:"query"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	Env             string        `yaml:"env"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

type CacheConfig struct {
	Enabled           bool          `yaml:"enabled"`
	KeyPrefix         string        `yaml:"key_prefix"`
	DefaultExpiration time.Duration `yaml:"default_expiration"`
	Capacity          uint64        `yaml:"capacity"`
}

type QueryConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Env:             "development",
			LogLevel:        "info",
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Driver:           DriverMemory,
			MaxConns:         10,
			MinConns:         1,
			MaxConnLifetime:  time.Hour,
			MaxConnIdleTime:  30 * time.Minute,
			StatementTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:           true,
			KeyPrefix:         "entity:",
			DefaultExpiration: 10 * time.Minute,
			Capacity:          10000,
		},
		Query: QueryConfig{
			CommandTimeout: 30 * time.Second,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if it
// exists, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CACHE_ENABLED: %w", err)
		}
		c.Cache.Enabled = b
	}
	if v := os.Getenv("CACHE_DEFAULT_EXPIRATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CACHE_DEFAULT_EXPIRATION: %w", err)
		}
		c.Cache.DefaultExpiration = d
	}
	if v := os.Getenv("CACHE_CAPACITY"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CACHE_CAPACITY: %w", err)
		}
		c.Cache.Capacity = n
	}
	if v := os.Getenv("QUERY_COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUERY_COMMAND_TIMEOUT: %w", err)
		}
		c.Query.CommandTimeout = d
	}
	return nil
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Cache.Enabled && c.Cache.DefaultExpiration <= 0 {
		return errors.New("cache.default_expiration must be positive")
	}
	if c.Query.CommandTimeout <= 0 {
		return errors.New("query.command_timeout must be positive")
	}
	return nil
}

// IsDevelopment reports whether the process runs in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}
