package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "PMC_READER_CONFIG"
	apiKeyEnv     = "NCBI_API_KEY"
	cacheDBEnv    = "PMC_READER_CACHE_DB"

	// NCBI allows 3 requests/second without an API key, 10 with one.
	defaultRPS        = 3.0
	defaultRPSWithKey = 10.0
)

// Duration wraps time.Duration with YAML decoding of strings like "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds high-level settings required across the application.
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Cache    CacheConfig    `yaml:"cache"`
	Bundle   BundleConfig   `yaml:"bundle"`
	Markdown MarkdownConfig `yaml:"markdown"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// UpstreamConfig describes the NCBI endpoints and outbound policy.
type UpstreamConfig struct {
	BaseURL           string   `yaml:"baseUrl"`
	OAURL             string   `yaml:"oaUrl"`
	APIKey            string   `yaml:"apiKey"`
	RequestsPerSecond float64  `yaml:"requestsPerSecond"`
	MaxRetries        int      `yaml:"maxRetries"`
	InitialBackoff    Duration `yaml:"initialBackoff"`
	MaxBackoff        Duration `yaml:"maxBackoff"`
	Timeout           Duration `yaml:"timeout"`
	UserAgent         string   `yaml:"userAgent"`
}

// EffectiveRPS resolves the configured rate, falling back to the NCBI
// defaults for keyed and keyless access.
func (u UpstreamConfig) EffectiveRPS() float64 {
	if u.RequestsPerSecond > 0 {
		return u.RequestsPerSecond
	}
	if u.APIKey != "" {
		return defaultRPSWithKey
	}
	return defaultRPS
}

// CacheConfig tunes the document cache and its optional SQLite store.
type CacheConfig struct {
	TTL         Duration `yaml:"ttl"`
	Capacity    int      `yaml:"capacity"`
	NegativeTTL Duration `yaml:"negativeTtl"`
	SQLitePath  string   `yaml:"sqlitePath"`
}

// BundleConfig bounds supplementary-bundle extraction.
type BundleConfig struct {
	MaxEntryBytes     int64    `yaml:"maxEntryBytes"`
	AllowedExtensions []string `yaml:"allowedExtensions"`
	OutputDir         string   `yaml:"outputDir"`
}

// MarkdownConfig carries renderer defaults for the CLI surface.
type MarkdownConfig struct {
	IncludeMetadata       bool `yaml:"includeMetadata"`
	UseYAMLFrontmatter    bool `yaml:"useYamlFrontmatter"`
	IncludeToc            bool `yaml:"includeToc"`
	IncludeFigureCaptions bool `yaml:"includeFigureCaptions"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			// Seed with defaults so absent YAML fields keep them,
			// booleans included.
			fileCfg := defaultConfig()
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Upstream.APIKey = v
	}
	if v := os.Getenv(cacheDBEnv); v != "" {
		c.Cache.SQLitePath = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Upstream.BaseURL != "" {
		base.Upstream.BaseURL = override.Upstream.BaseURL
	}
	if override.Upstream.OAURL != "" {
		base.Upstream.OAURL = override.Upstream.OAURL
	}
	if override.Upstream.APIKey != "" {
		base.Upstream.APIKey = override.Upstream.APIKey
	}
	if override.Upstream.RequestsPerSecond > 0 {
		base.Upstream.RequestsPerSecond = override.Upstream.RequestsPerSecond
	}
	if override.Upstream.MaxRetries > 0 {
		base.Upstream.MaxRetries = override.Upstream.MaxRetries
	}
	if override.Upstream.InitialBackoff > 0 {
		base.Upstream.InitialBackoff = override.Upstream.InitialBackoff
	}
	if override.Upstream.MaxBackoff > 0 {
		base.Upstream.MaxBackoff = override.Upstream.MaxBackoff
	}
	if override.Upstream.Timeout > 0 {
		base.Upstream.Timeout = override.Upstream.Timeout
	}
	if override.Upstream.UserAgent != "" {
		base.Upstream.UserAgent = override.Upstream.UserAgent
	}

	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}
	if override.Cache.Capacity > 0 {
		base.Cache.Capacity = override.Cache.Capacity
	}
	if override.Cache.NegativeTTL > 0 {
		base.Cache.NegativeTTL = override.Cache.NegativeTTL
	}
	if override.Cache.SQLitePath != "" {
		base.Cache.SQLitePath = override.Cache.SQLitePath
	}

	if override.Bundle.MaxEntryBytes > 0 {
		base.Bundle.MaxEntryBytes = override.Bundle.MaxEntryBytes
	}
	if len(override.Bundle.AllowedExtensions) > 0 {
		base.Bundle.AllowedExtensions = override.Bundle.AllowedExtensions
	}
	if override.Bundle.OutputDir != "" {
		base.Bundle.OutputDir = override.Bundle.OutputDir
	}

	base.Markdown = override.Markdown

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Upstream: UpstreamConfig{
			BaseURL:        "https://eutils.ncbi.nlm.nih.gov/entrez/eutils",
			OAURL:          "https://www.ncbi.nlm.nih.gov/pmc/utils/oa/oa.fcgi",
			MaxRetries:     3,
			InitialBackoff: Duration(500 * time.Millisecond),
			MaxBackoff:     Duration(10 * time.Second),
			Timeout:        Duration(30 * time.Second),
			UserAgent:      "PmcReader/1.0",
		},
		Cache: CacheConfig{
			TTL:      Duration(7 * 24 * time.Hour),
			Capacity: 1000,
		},
		Bundle: BundleConfig{
			MaxEntryBytes: 100 << 20,
			AllowedExtensions: []string{
				"nxml", "xml", "pdf", "txt", "csv", "tsv",
				"jpg", "jpeg", "png", "gif", "tif", "tiff", "svg",
				"xlsx", "docx", "zip",
			},
			OutputDir: "./extracted",
		},
		Markdown: MarkdownConfig{
			IncludeMetadata:       true,
			IncludeFigureCaptions: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
