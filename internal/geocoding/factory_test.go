package geocoding_test

import (
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/atlas-batch/internal/geocoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoogleProvider(t *testing.T) {
	logger := slog.Default()

	t.Run("create provider with API key", func(t *testing.T) {
		config := geocoding.ProviderConfig{
			APIKey: "AIza-test-api-key",
			Logger: logger,
		}

		provider, err := geocoding.NewGoogleProvider(config)

		require.NoError(t, err)
		require.NotNil(t, provider)
	})

	t.Run("create provider with client credentials", func(t *testing.T) {
		config := geocoding.ProviderConfig{
			ClientID:   "gme-test",
			PrivateKey: "dGVzdC1zaWduaW5nLWtleQ==",
			Logger:     logger,
		}

		provider, err := geocoding.NewGoogleProvider(config)

		require.NoError(t, err)
		require.NotNil(t, provider)
	})

	t.Run("create provider without credentials fails", func(t *testing.T) {
		config := geocoding.ProviderConfig{Logger: logger}

		provider, err := geocoding.NewGoogleProvider(config)

		require.Nil(t, provider)
		require.ErrorIs(t, err, geocoding.ErrMissingCredentials)
	})

	t.Run("client id without private key falls back to API key", func(t *testing.T) {
		config := geocoding.ProviderConfig{
			APIKey:   "AIza-test-api-key",
			ClientID: "gme-test",
			Logger:   logger,
		}

		provider, err := geocoding.NewGoogleProvider(config)

		require.NoError(t, err)
		require.NotNil(t, provider)
		assert.False(t, config.HasPremiumCredentials())
	})
}

func TestDefaultRequestsPerSecond(t *testing.T) {
	assert.InDelta(t, 2.0, geocoding.DefaultRequestsPerSecond(geocoding.ProviderConfig{APIKey: "key"}), 0)
	assert.InDelta(t, 10.0, geocoding.DefaultRequestsPerSecond(geocoding.ProviderConfig{
		ClientID:   "gme-test",
		PrivateKey: "secret",
	}), 0)
}

func TestStatus_Retryable(t *testing.T) {
	assert.True(t, geocoding.StatusOverQueryLimit.Retryable())
	for _, status := range []geocoding.Status{
		geocoding.StatusOK,
		geocoding.StatusZeroResults,
		geocoding.StatusInvalidRequest,
		geocoding.StatusRequestDenied,
		geocoding.StatusOverDailyLimit,
		geocoding.StatusUnknownError,
	} {
		assert.False(t, status.Retryable(), status)
	}
}
