package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 3*time.Second, cfg.CatalogTimeout)
	assert.Equal(t, 500, cfg.BulkMaxItems)
	assert.Equal(t, "flag", cfg.MinQuantityPolicy)
	assert.Equal(t, 3, cfg.OverrideMaxRetries)
	assert.Empty(t, cfg.FXFeedURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BASE_CURRENCY", "thb")
	t.Setenv("CATALOG_TIMEOUT", "750ms")
	t.Setenv("BULK_CONCURRENCY", "2")
	t.Setenv("FX_FEED_URL", "https://rates.example.com/latest")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "THB", cfg.BaseCurrency)
	assert.Equal(t, 750*time.Millisecond, cfg.CatalogTimeout)
	assert.Equal(t, 2, cfg.BulkConcurrency)
	assert.Equal(t, "https://rates.example.com/latest", cfg.FXFeedURL)
}

func TestLoad_RejectsBadSettings(t *testing.T) {
	t.Run("currency", func(t *testing.T) {
		t.Setenv("BASE_CURRENCY", "DOLLAR")
		_, err := Load()
		assert.ErrorContains(t, err, "BASE_CURRENCY")
	})
	t.Run("concurrency", func(t *testing.T) {
		t.Setenv("BULK_CONCURRENCY", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "BULK_CONCURRENCY")
	})
	t.Run("production secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
}
