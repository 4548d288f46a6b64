package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application-wide configuration loaded from environment variables.
type Config struct {
	DatabaseURL         string
	AppEnv              string
	Port                string
	ConfigDir           string
	ReportDir           string
	ReportTTL           time.Duration
	SummaryCacheTTL     time.Duration
	CORSOrigins         []string
	GCSBucketName       string
	SentryDSN           string
	EmbeddingServiceURL string
	AdminToken          string
}

// LoadConfig reads configuration from environment variables or a .env file.
// It is the single source of truth for application configuration.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists. In production, these are set directly in the environment.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("FATAL: DATABASE_URL environment variable not set")
	}

	reportTTL, err := durationEnv("REPORT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := durationEnv("SUMMARY_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:         dbURL,
		AppEnv:              stringEnv("APP_ENV", "development"),
		Port:                stringEnv("PORT", "8080"),
		ConfigDir:           stringEnv("CONFIG_DIR", "configs"),
		ReportDir:           stringEnv("REPORT_DIR", "data/reports"),
		ReportTTL:           reportTTL,
		SummaryCacheTTL:     cacheTTL,
		CORSOrigins:         listEnv("CORS_ORIGINS", []string{"http://localhost:3000"}),
		GCSBucketName:       os.Getenv("GCS_BUCKET_NAME"),
		SentryDSN:           os.Getenv("SENTRY_DSN"),
		EmbeddingServiceURL: os.Getenv("EMBEDDING_SERVICE_URL"),
		AdminToken:          os.Getenv("ADMIN_TOKEN"),
	}, nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("FATAL: %s must be a positive duration such as 24h, got '%s'", key, v)
	}
	return d, nil
}

func listEnv(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
