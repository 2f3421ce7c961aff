package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv               string
	Port                 string
	LogLevel             string
	DatabaseURL          string
	PublicBaseURL        string
	StoragePath          string
	StorageBaseURL       string
	ImageSourceAllowlist []string
	GeoIPDBPath          string
	DefaultLocale        string
	CORSAllowedOrigins   []string

	CopyProvider     string
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiImageModel string
	GeminiBaseURL    string
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIBaseURL    string
	OpenAIOrg        string

	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitGenerate int
	RateLimitWindow   time.Duration
	GenerationTimeout time.Duration
	VariantCount      int
	ExportWidth       int
	ExportQuality     int
	SessionTTL        time.Duration
	UploadMaxBytes    int64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		LogLevel:           strings.ToLower(os.Getenv("LOG_LEVEL")),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		StoragePath:        getEnv("STORAGE_PATH", "./data"),
		StorageBaseURL:     strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		CopyProvider:     strings.ToLower(getEnv("COPY_PROVIDER", "gemini")),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiTextModel:  getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:        os.Getenv("OPENAI_ORG"),

		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitGenerate: getEnvInt("RATE_LIMIT_GENERATE", 5),
		RateLimitWindow:   time.Second * time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 60)),
		VariantCount:      getEnvInt("VARIANT_COUNT", 10),
		ExportWidth:       getEnvInt("EXPORT_WIDTH", 860),
		ExportQuality:     getEnvInt("EXPORT_QUALITY", 90),
		SessionTTL:        time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)),
		UploadMaxBytes:    int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
	}

	hosts, err := imageSourceHosts(cfg.StorageBaseURL, os.Getenv("IMAGE_SOURCE_HOST_ALLOWLIST"))
	if err != nil {
		return nil, err
	}
	cfg.ImageSourceAllowlist = hosts

	if cfg.RateLimitGenerate <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_GENERATE must be positive")
	}
	if cfg.VariantCount <= 0 || cfg.VariantCount > 20 {
		return nil, fmt.Errorf("VARIANT_COUNT must be between 1 and 20")
	}
	if cfg.ExportQuality <= 0 || cfg.ExportQuality > 100 {
		return nil, fmt.Errorf("EXPORT_QUALITY must be between 1 and 100")
	}

	return cfg, nil
}

// imageSourceHosts merges the storage host with the explicit allowlist,
// lower-cased, deduplicated and sorted.
func imageSourceHosts(storageBaseURL, explicit string) ([]string, error) {
	seen := map[string]struct{}{}
	if storageBaseURL != "" {
		u, err := url.Parse(storageBaseURL)
		if err != nil {
			return nil, fmt.Errorf("STORAGE_BASE_URL: %w", err)
		}
		if h := strings.ToLower(u.Hostname()); h != "" {
			seen[h] = struct{}{}
		}
	}
	for _, h := range splitList(explicit) {
		seen[strings.ToLower(h)] = struct{}{}
	}
	hosts := make([]string, 0, len(seen))
	for h := range seen {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
