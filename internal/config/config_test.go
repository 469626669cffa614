package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("PORT", "")
	t.Setenv("CRUX_TIMEOUT", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("S3_SERVICE_URL", "")
	t.Setenv("S3_ACCESS_KEY", "")
	t.Setenv("S3_BUCKET_NAME", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "test-key", cfg.GoogleAPIKey)
	assert.Equal(t, defaultCruxEndpoint, cfg.CruxEndpoint)
	assert.Equal(t, 10*time.Second, cfg.CruxTimeout)
	assert.Equal(t, 12*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "crux-records", cfg.S3.BucketName)
	assert.False(t, cfg.CacheEnabled())
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("PORT", "9090")
	t.Setenv("CRUX_TIMEOUT", "5s")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("S3_SERVICE_URL", "http://localhost:9000")
	t.Setenv("S3_BUCKET_NAME", "my-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.CruxTimeout)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, "my-bucket", cfg.S3.BucketName)
	assert.True(t, cfg.S3.Configured())
	assert.True(t, cfg.CacheEnabled())
}

func TestLoadInvalidDurations(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")

	t.Setenv("CRUX_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CRUX_TIMEOUT", "10s")
	t.Setenv("CACHE_TTL", "-1h")
	_, err = Load()
	assert.Error(t, err)
}

func TestCacheDisabledByZeroTTL(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("S3_SERVICE_URL", "http://localhost:9000")
	t.Setenv("CACHE_TTL", "0s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.S3.Configured())
	assert.False(t, cfg.CacheEnabled())
}
