package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trade")
	for _, key := range []string{"APP_ENV", "PORT", "CONFIG_DIR", "REPORT_DIR", "REPORT_TTL", "SUMMARY_CACHE_TTL",
		"CORS_ORIGINS", "GCS_BUCKET_NAME", "SENTRY_DSN", "EMBEDDING_SERVICE_URL", "ADMIN_TOKEN"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "configs", cfg.ConfigDir)
	assert.Equal(t, 24*time.Hour, cfg.ReportTTL)
	assert.Equal(t, 10*time.Minute, cfg.SummaryCacheTTL)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.GCSBucketName)
	assert.Empty(t, cfg.AdminToken)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trade")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REPORT_TTL", "2h")
	t.Setenv("SUMMARY_CACHE_TTL", "30s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("GCS_BUCKET_NAME", "trade-reports")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, 2*time.Hour, cfg.ReportTTL)
	assert.Equal(t, 30*time.Second, cfg.SummaryCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "trade-reports", cfg.GCSBucketName)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/trade")
		t.Setenv("REPORT_TTL", "tomorrow")
		_, err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REPORT_TTL")
	})
}
