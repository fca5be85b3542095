// Package config loads and validates unisearch configuration.
//
// Configuration is resolved in priority order:
//  1. Environment variables (UNISEARCH_*) - highest priority
//  2. Config file (--config flag or ~/.unisearch/config.yaml)
//  3. Built-in defaults
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete unisearch configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CatalogConfig configures the remote catalog endpoints.
// Authentication material (bearer token) is supplied by the deployment;
// unisearch never derives or refreshes credentials itself.
type CatalogConfig struct {
	// GraphQLEndpoint is the catalog GraphQL API URL.
	GraphQLEndpoint string `yaml:"graphql_endpoint" json:"graphql_endpoint"`

	// SearchEndpoint is the Elasticsearch-backed search proxy URL.
	SearchEndpoint string `yaml:"search_endpoint" json:"search_endpoint"`

	// AuthToken is the bearer token attached to catalog requests.
	// Usually supplied via UNISEARCH_AUTH_TOKEN rather than on disk.
	AuthToken string `yaml:"auth_token" json:"-"`
}

// SearchConfig configures search execution parameters.
type SearchConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// Timeout is the maximum duration for one search call (default: 15s).
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// ProbeTimeout is the maximum duration for a backend health probe
	// (default: 5s).
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`

	// FanoutConcurrency bounds parallel per-bucket queries during the
	// Elasticsearch bucket-enumeration fallback (default: 4).
	FanoutConcurrency int `yaml:"fanout_concurrency" json:"fanout_concurrency"`

	// AnalyzerCacheSize is the LRU cache size for query analysis results
	// (default: 1024).
	AnalyzerCacheSize int `yaml:"analyzer_cache_size" json:"analyzer_cache_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			DefaultLimit:      10,
			MaxLimit:          100,
			Timeout:           15 * time.Second,
			ProbeTimeout:      5 * time.Second,
			FanoutConcurrency: 4,
			AnalyzerCacheSize: 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".unisearch", "config.yaml")
	}
	return filepath.Join(home, ".unisearch", "config.yaml")
}

// Load reads configuration from the given path, falling back to defaults
// when the file does not exist, and applies environment overrides.
// An empty path means the default location.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Default location missing is fine; run on defaults + env.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays UNISEARCH_* environment variables onto the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("UNISEARCH_GRAPHQL_ENDPOINT"); v != "" {
		c.Catalog.GraphQLEndpoint = v
	}
	if v := os.Getenv("UNISEARCH_SEARCH_ENDPOINT"); v != "" {
		c.Catalog.SearchEndpoint = v
	}
	if v := os.Getenv("UNISEARCH_AUTH_TOKEN"); v != "" {
		c.Catalog.AuthToken = v
	}
	if v := os.Getenv("UNISEARCH_DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("UNISEARCH_MAX_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxLimit = n
		}
	}
	if v := os.Getenv("UNISEARCH_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Search.Timeout = d
		}
	}
	if v := os.Getenv("UNISEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be positive, got %s", c.Search.Timeout)
	}
	if c.Search.ProbeTimeout <= 0 {
		return fmt.Errorf("search.probe_timeout must be positive, got %s", c.Search.ProbeTimeout)
	}
	if c.Search.FanoutConcurrency <= 0 {
		return fmt.Errorf("search.fanout_concurrency must be positive, got %d", c.Search.FanoutConcurrency)
	}
	for name, endpoint := range map[string]string{
		"catalog.graphql_endpoint": c.Catalog.GraphQLEndpoint,
		"catalog.search_endpoint":  c.Catalog.SearchEndpoint,
	} {
		if endpoint == "" {
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid URL: %q", name, endpoint)
		}
	}
	return nil
}

// Save writes the configuration to the given path as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
