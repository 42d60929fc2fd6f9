package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sphinx.Addr() != "localhost:9306" {
		t.Errorf("sphinx addr = %q", cfg.Sphinx.Addr())
	}
	if cfg.Search.DefaultIndex != "article_index" {
		t.Errorf("default index = %q", cfg.Search.DefaultIndex)
	}
	if cfg.Redis.CacheTTL != 60*time.Second {
		t.Errorf("cache ttl = %v", cfg.Redis.CacheTTL)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searchd.yaml")
	data := []byte(`
sphinx:
  host: sphinx.internal
  port: 9312
search:
  defaultIndex: products
  defaultPageSize: 10
  maxPageSize: 50
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SP_SPHINX_PORT", "9306")
	t.Setenv("SP_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sphinx.Host != "sphinx.internal" {
		t.Errorf("host = %q", cfg.Sphinx.Host)
	}
	if cfg.Sphinx.Port != 9306 {
		t.Errorf("env override not applied, port = %d", cfg.Sphinx.Port)
	}
	if cfg.Search.DefaultIndex != "products" || cfg.Search.DefaultPageSize != 10 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no index", func(c *Config) { c.Search.DefaultIndex = "" }},
		{"no page size", func(c *Config) { c.Search.DefaultPageSize = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxPageSize = 5 }},
		{"snippets without postgres", func(c *Config) { c.Snippet.Enabled = true }},
		{"snippets without fields", func(c *Config) {
			c.Snippet.Enabled = true
			c.Postgres.Enabled = true
			c.Snippet.Fields = nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIndexAllowed(t *testing.T) {
	s := SearchConfig{DefaultIndex: "article_index", AllowedIndexes: []string{"product_index"}}
	if !s.IndexAllowed("article_index") || !s.IndexAllowed("product_index") {
		t.Error("expected configured indexes to be allowed")
	}
	if s.IndexAllowed("secret_index") {
		t.Error("unexpected index allowed")
	}
}

func TestFacetAllowed(t *testing.T) {
	s := defaultConfig().Search
	if !s.FacetAllowed("author_id") {
		t.Error("default facet rejected")
	}
	if s.FacetAllowed("author_id; SHOW TABLES") || s.FacetAllowed("") {
		t.Error("unexpected facet allowed")
	}
}
