package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if len(cfg.ImageSourceAllowlist) != 1 || cfg.ImageSourceAllowlist[0] != "localhost" {
		t.Fatalf("ImageSourceAllowlist mismatch: %#v", cfg.ImageSourceAllowlist)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if len(cfg.ImageSourceAllowlist) != 1 || cfg.ImageSourceAllowlist[0] != "localhost" {
		t.Fatalf("ImageSourceAllowlist mismatch: %#v", cfg.ImageSourceAllowlist)
	}
}

func TestLoadConfigHonorsExplicitStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "https://cdn.example.com/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if len(cfg.ImageSourceAllowlist) != 1 || cfg.ImageSourceAllowlist[0] != "cdn.example.com" {
		t.Fatalf("ImageSourceAllowlist mismatch: %#v", cfg.ImageSourceAllowlist)
	}
}

func TestLoadConfigMergesExplicitAllowlist(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "https://cdn.example.com/static")
	t.Setenv("IMAGE_SOURCE_HOST_ALLOWLIST", "media.example.com, localhost ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"cdn.example.com", "localhost", "media.example.com"}
	if len(cfg.ImageSourceAllowlist) != len(expected) {
		t.Fatalf("ImageSourceAllowlist mismatch: got %#v want %#v", cfg.ImageSourceAllowlist, expected)
	}
	for i, host := range expected {
		if cfg.ImageSourceAllowlist[i] != host {
			t.Fatalf("ImageSourceAllowlist[%d] = %q, want %q", i, cfg.ImageSourceAllowlist[i], host)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "PORT", "RATE_LIMIT_GENERATE", "SESSION_TTL_MINUTES", "CORS_ALLOWED_ORIGINS", "DEFAULT_LOCALE", "COPY_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL should be optional, got %q", cfg.DatabaseURL)
	}
	if cfg.RateLimitGenerate != 5 || cfg.RateLimitWindow != time.Minute {
		t.Fatalf("rate limit defaults: %d per %s", cfg.RateLimitGenerate, cfg.RateLimitWindow)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("SessionTTL = %s", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
	if cfg.DefaultLocale != "en" || cfg.CopyProvider != "gemini" {
		t.Fatalf("locale/provider defaults: %q %q", cfg.DefaultLocale, cfg.CopyProvider)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
}

func TestLoadConfigRejectsInvalidLimits(t *testing.T) {
	cases := map[string]string{
		"RATE_LIMIT_GENERATE": "0",
		"VARIANT_COUNT":       "50",
		"EXPORT_QUALITY":      "101",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
