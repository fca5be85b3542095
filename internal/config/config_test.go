package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 15*time.Second, cfg.Search.Timeout)
	assert.Equal(t, 4, cfg.Search.FanoutConcurrency)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
}

func TestLoad_ExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  graphql_endpoint: https://catalog.example.com/graphql
  search_endpoint: https://search.example.com
search:
  default_limit: 25
  max_limit: 50
  timeout: 30s
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "https://catalog.example.com/graphql", cfg.Catalog.GraphQLEndpoint)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	// Unset fields keep defaults
	assert.Equal(t, 4, cfg.Search.FanoutConcurrency)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UNISEARCH_GRAPHQL_ENDPOINT", "https://env.example.com/graphql")
	t.Setenv("UNISEARCH_AUTH_TOKEN", "secret")
	t.Setenv("UNISEARCH_DEFAULT_LIMIT", "7")
	t.Setenv("UNISEARCH_LOG_LEVEL", "debug")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/graphql", cfg.Catalog.GraphQLEndpoint)
	assert.Equal(t, "secret", cfg.Catalog.AuthToken)
	assert.Equal(t, 7, cfg.Search.DefaultLimit)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxLimit = 1 }},
		{"zero timeout", func(c *Config) { c.Search.Timeout = 0 }},
		{"zero fanout", func(c *Config) { c.Search.FanoutConcurrency = 0 }},
		{"bad endpoint", func(c *Config) { c.Catalog.GraphQLEndpoint = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Catalog.SearchEndpoint = "https://search.example.com"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://search.example.com", loaded.Catalog.SearchEndpoint)
}
