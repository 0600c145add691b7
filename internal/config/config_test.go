package config_test

import (
	"testing"
	"time"

	"github.com/UnknownOlympus/atlas-batch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("ATLAS_ENV", "local")
	t.Setenv("ATLAS_INTERVAL", "5m")
	t.Setenv("ATLAS_CACHE_FILE", "/var/lib/atlas/dbfile.cgg")
	t.Setenv("ATLAS_PROVIDER_KEY", "testAPIKey")
	t.Setenv("ATLAS_CLIENT_ID", "gme-test")
	t.Setenv("ATLAS_PRIVATE_KEY", "c2VjcmV0")
	t.Setenv("ATLAS_REQUESTS_PER_SECOND", "7.5")
	t.Setenv("ATLAS_ADDRESS_PREFIX", "Kyiv, ")
	t.Setenv("DB_HOST", "testHost")
	t.Setenv("DB_PORT", "12345")
	t.Setenv("DB_USERNAME", "admin")
	t.Setenv("DB_PASSWORD", "adminpass")
	t.Setenv("DB_NAME", "testName")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "/var/lib/atlas/dbfile.cgg", cfg.CacheFile)
	assert.Equal(t, "testAPIKey", cfg.APIKey)
	assert.Equal(t, "gme-test", cfg.ClientID)
	assert.Equal(t, "c2VjcmV0", cfg.PrivateKey)
	assert.InDelta(t, 7.5, cfg.RequestsPerSecond, 0)
	assert.Equal(t, "Kyiv, ", cfg.AddrPrefix)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, config.PostgresConfig{
		Host:     "testHost",
		Port:     "12345",
		User:     "admin",
		Password: "adminpass",
		Name:     "testName",
	}, cfg.Database)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "./dbfile.cgg", cfg.CacheFile)
	assert.Zero(t, cfg.RequestsPerSecond)
	assert.Equal(t, 20, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.RetryMaxDelay)
	assert.Equal(t, 10*time.Minute, cfg.Interval)
	assert.Equal(t, 100, cfg.TaskLimit)
	assert.Equal(t, "5432", cfg.Database.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		message string
	}{
		{"interval", "ATLAS_INTERVAL", "error_value", "failed to parse interval"},
		{"non-positive interval", "ATLAS_INTERVAL", "0s", "interval must be positive"},
		{"port", "ATLAS_HEALTH_PORT", "error_value", "failed to parse port for monitoring server"},
		{"requests per second", "ATLAS_REQUESTS_PER_SECOND", "fast", "failed to parse requests per second"},
		{"max retries", "ATLAS_MAX_RETRIES", "many", "failed to parse max retries"},
		{"zero max retries", "ATLAS_MAX_RETRIES", "0", "max retries must be positive"},
		{"retry delay", "ATLAS_RETRY_DELAY", "soon", "failed to parse retry delay"},
		{"task limit", "ATLAS_TASK_LIMIT", "-1", "task limit must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg, err := config.Load()

			require.Nil(t, cfg)
			require.ErrorIs(t, err, config.ErrInvalid)
			require.ErrorContains(t, err, tt.message)
		})
	}
}
