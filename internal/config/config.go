// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	CMS           CMSConfig           `yaml:"cms"`
	Meilisearch   MeilisearchConfig   `yaml:"meilisearch"`
	Search        SearchConfig        `yaml:"search"`
	Session       SessionConfig       `yaml:"session"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// CMSConfig describes the headless CMS the portal reads content from and
// submits forms to.
type CMSConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// MeilisearchConfig describes the search service and its credential tiers.
// AdminKey falls back to SearchKey when unset.
type MeilisearchConfig struct {
	Host      string        `yaml:"host"`
	SearchKey string        `yaml:"search_key"`
	AdminKey  string        `yaml:"admin_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EffectiveAdminKey returns the admin credential, falling back to the
// search key.
func (m MeilisearchConfig) EffectiveAdminKey() string {
	if m.AdminKey != "" {
		return m.AdminKey
	}
	return m.SearchKey
}

// SearchConfig describes aggregation settings.
type SearchConfig struct {
	IndexCacheTTL time.Duration `yaml:"index_cache_ttl"`
	DefaultLimit  int           `yaml:"default_limit"`
	MaxLimit      int           `yaml:"max_limit"`
	Debounce      time.Duration `yaml:"debounce"`
}

// SessionConfig describes form wizard session settings.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  25 << 20,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		CMS: CMSConfig{
			BaseURL: "http://localhost:1337",
			Timeout: 15 * time.Second,
		},
		Meilisearch: MeilisearchConfig{
			Host:    "http://localhost:7700",
			Timeout: 10 * time.Second,
		},
		Search: SearchConfig{
			IndexCacheTTL: 5 * time.Minute,
			DefaultLimit:  20,
			MaxLimit:      50,
			Debounce:      400 * time.Millisecond,
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields. An empty path loads defaults plus the
// environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.CMS.BaseURL == "" {
		errs = append(errs, "cms.base_url is required")
	}
	if c.Meilisearch.Host == "" {
		errs = append(errs, "meilisearch.host is required")
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, "search.max_limit must be >= search.default_limit")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads PORTAL_* environment variables and overrides
// config values. The Meilisearch credentials also honor the conventional
// MEILISEARCH_* names so deployments can share them with other tooling.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTAL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PORTAL_CMS_BASE_URL"); v != "" {
		cfg.CMS.BaseURL = v
	}
	if v := os.Getenv("PORTAL_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("MEILISEARCH_HOST"); v != "" {
		cfg.Meilisearch.Host = v
	}
	if v := firstEnv("MEILISEARCH_PUBLIC_KEY", "MEILISEARCH_SEARCH_KEY"); v != "" {
		cfg.Meilisearch.SearchKey = v
	}
	if v := firstEnv("MEILISEARCH_MASTER_KEY", "MEILISEARCH_ADMIN_KEY"); v != "" {
		cfg.Meilisearch.AdminKey = v
	}
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
