package config

import (
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.CMS.BaseURL != "https://cms.example.com" {
		t.Errorf("CMS.BaseURL = %q", cfg.CMS.BaseURL)
	}
	if cfg.Meilisearch.Host != "https://search.example.com" {
		t.Errorf("Meilisearch.Host = %q", cfg.Meilisearch.Host)
	}
	if cfg.Search.IndexCacheTTL != 2*time.Minute {
		t.Errorf("Search.IndexCacheTTL = %v, want 2m", cfg.Search.IndexCacheTTL)
	}
	if cfg.Search.Debounce != 250*time.Millisecond {
		t.Errorf("Search.Debounce = %v, want 250ms", cfg.Search.Debounce)
	}
	if cfg.Session.TTL != 10*time.Minute {
		t.Errorf("Session.TTL = %v, want 10m", cfg.Session.TTL)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("Observability.LogLevel = %q", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.Tracing.Enabled || cfg.Observability.Tracing.Exporter != "stdout" {
		t.Errorf("Tracing = %+v", cfg.Observability.Tracing)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load("testdata/nonexistent.yaml"); err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_emptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Search.IndexCacheTTL != 5*time.Minute {
		t.Errorf("Search.IndexCacheTTL = %v, want 5m", cfg.Search.IndexCacheTTL)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MaxLimit != 50 {
		t.Errorf("limits = %d/%d", cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}
	if cfg.Search.Debounce != 400*time.Millisecond {
		t.Errorf("Search.Debounce = %v, want 400ms", cfg.Search.Debounce)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("PORTAL_SERVER_PORT", "7000")
	t.Setenv("PORTAL_CMS_BASE_URL", "https://env-cms.example.com")
	t.Setenv("MEILISEARCH_HOST", "https://env-meili.example.com")
	t.Setenv("MEILISEARCH_PUBLIC_KEY", "env-public")
	t.Setenv("MEILISEARCH_MASTER_KEY", "env-master")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.CMS.BaseURL != "https://env-cms.example.com" {
		t.Errorf("CMS.BaseURL = %q", cfg.CMS.BaseURL)
	}
	if cfg.Meilisearch.Host != "https://env-meili.example.com" {
		t.Errorf("Meilisearch.Host = %q", cfg.Meilisearch.Host)
	}
	if cfg.Meilisearch.SearchKey != "env-public" {
		t.Errorf("Meilisearch.SearchKey = %q", cfg.Meilisearch.SearchKey)
	}
	if cfg.Meilisearch.AdminKey != "env-master" {
		t.Errorf("Meilisearch.AdminKey = %q", cfg.Meilisearch.AdminKey)
	}
}

func TestEffectiveAdminKey(t *testing.T) {
	m := MeilisearchConfig{SearchKey: "pub"}
	if got := m.EffectiveAdminKey(); got != "pub" {
		t.Errorf("EffectiveAdminKey() = %q, want search key fallback", got)
	}
	m.AdminKey = "master"
	if got := m.EffectiveAdminKey(); got != "master" {
		t.Errorf("EffectiveAdminKey() = %q, want master", got)
	}
}

func TestValidate_errors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.CMS.BaseURL = ""
	cfg.Search.MaxLimit = 5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
}
