package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Upstream.BaseURL != "https://eutils.ncbi.nlm.nih.gov/entrez/eutils" {
		t.Fatalf("base url = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.MaxRetries != 3 {
		t.Fatalf("max retries = %d", cfg.Upstream.MaxRetries)
	}
	if cfg.Cache.TTL.Std() != 7*24*time.Hour {
		t.Fatalf("ttl = %v", cfg.Cache.TTL.Std())
	}
	if cfg.Cache.NegativeTTL != 0 {
		t.Fatalf("negative ttl should default off, got %v", cfg.Cache.NegativeTTL.Std())
	}
	if !cfg.Markdown.IncludeMetadata || !cfg.Markdown.IncludeFigureCaptions {
		t.Fatalf("markdown defaults = %+v", cfg.Markdown)
	}
}

func TestEffectiveRPS(t *testing.T) {
	t.Parallel()

	var u UpstreamConfig
	if got := u.EffectiveRPS(); got != 3.0 {
		t.Fatalf("keyless rps = %v", got)
	}
	u.APIKey = "k"
	if got := u.EffectiveRPS(); got != 10.0 {
		t.Fatalf("keyed rps = %v", got)
	}
	u.RequestsPerSecond = 5
	if got := u.EffectiveRPS(); got != 5.0 {
		t.Fatalf("explicit rps = %v", got)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
upstream:
  maxRetries: 5
  timeout: 10s
cache:
  ttl: 1h
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PMC_READER_CONFIG", path)

	cfg := Load()
	if cfg.Upstream.MaxRetries != 5 {
		t.Fatalf("max retries = %d", cfg.Upstream.MaxRetries)
	}
	if cfg.Upstream.Timeout.Std() != 10*time.Second {
		t.Fatalf("timeout = %v", cfg.Upstream.Timeout.Std())
	}
	if cfg.Cache.TTL.Std() != time.Hour {
		t.Fatalf("ttl = %v", cfg.Cache.TTL.Std())
	}
	// Untouched fields keep their defaults, booleans included.
	if cfg.Upstream.BaseURL == "" || !cfg.Markdown.IncludeMetadata {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NCBI_API_KEY", "secret-key")
	t.Setenv("PMC_READER_CACHE_DB", "/tmp/test-cache.db")

	cfg := Load()
	if cfg.Upstream.APIKey != "secret-key" {
		t.Fatalf("api key = %q", cfg.Upstream.APIKey)
	}
	if cfg.Cache.SQLitePath != "/tmp/test-cache.db" {
		t.Fatalf("sqlite path = %q", cfg.Cache.SQLitePath)
	}
}

func TestLoadIgnoresBrokenConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("upstream: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PMC_READER_CONFIG", path)

	cfg := Load()
	if cfg.Upstream.MaxRetries != 3 {
		t.Fatalf("broken file should leave defaults, got %+v", cfg.Upstream)
	}
}

func TestDurationUnmarshalRejectsGarbage(t *testing.T) {
	t.Parallel()

	var d Duration
	if err := d.UnmarshalYAML(yamlNode(t, "not-a-duration")); err == nil {
		t.Fatal("expected error")
	}
	if err := d.UnmarshalYAML(yamlNode(t, "1500ms")); err != nil {
		t.Fatalf("valid duration rejected: %v", err)
	}
	if d.Std() != 1500*time.Millisecond {
		t.Fatalf("parsed = %v", d.Std())
	}
}

func yamlNode(t *testing.T, value string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	if err := yaml.Unmarshal([]byte(value), &n); err != nil {
		t.Fatalf("parse yaml scalar: %v", err)
	}
	return n.Content[0]
}
