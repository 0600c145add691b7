package geocoding_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/atlas-batch/internal/geocoding"
	"github.com/UnknownOlympus/atlas-batch/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGeocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProviderWithClient(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns transport error", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, address)

		require.Error(t, err)
		require.ErrorIs(t, err, assert.AnError)
		require.ErrorIs(t, err, geocoding.ErrTransport)
		mockClient.AssertExpectations(t)
	})

	t.Run("api returns quota rejection", func(t *testing.T) {
		address := "Juliusstraße 1, Hamburg, Germany"
		req := &maps.GeocodingRequest{Address: address}
		apiErr := errors.New("maps: OVER_QUERY_LIMIT - You have exceeded your rate-limit for this API.")

		mockClient.On("Geocode", ctx, req).Return(nil, apiErr).Once()

		result, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		assert.Equal(t, geocoding.StatusOverQueryLimit, result.Status)
		assert.True(t, result.Status.Retryable())
		mockClient.AssertExpectations(t)
	})

	t.Run("api returns status without message", func(t *testing.T) {
		address := "xdfagsf, asdf adsf a,a sdfa dsf"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, errors.New("maps: ZERO_RESULTS")).Once()

		result, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		assert.Equal(t, geocoding.StatusZeroResults, result.Status)
		assert.False(t, result.Status.Retryable())
	})

	t.Run("api return empty response", func(t *testing.T) {
		address := "some invalid place"
		req := &maps.GeocodingRequest{Address: address}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		result, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		assert.Equal(t, geocoding.StatusZeroResults, result.Status)
		mockClient.AssertExpectations(t)
	})

	t.Run("apostrophes are stripped from the request", func(t *testing.T) {
		req := &maps.GeocodingRequest{Address: "Juliusstraße 25, Hamburg, Germany"}
		mockReponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 53.5612782, Lng: 9.9610992}}},
		}

		mockClient.On("Geocode", ctx, req).Return(mockReponse, nil).Once()

		result, err := provider.Geocode(ctx, "Juliu'sstraße 25, Hamburg, Germany")

		require.NoError(t, err)
		assert.Equal(t, geocoding.StatusOK, result.Status)
		mockClient.AssertExpectations(t)
	})

	t.Run("successfull geocoding", func(t *testing.T) {
		address := "1600 Amphitheatre Parkway, Mountain View, CA"
		req := &maps.GeocodingRequest{Address: address}
		mockReponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 37.42, Lng: -122.08}}},
		}

		mockClient.On("Geocode", ctx, req).Return(mockReponse, nil).Once()

		result, err := provider.Geocode(ctx, address)

		require.NoError(t, err)
		require.Equal(t, geocoding.StatusOK, result.Status)
		require.InEpsilon(t, 37.42, result.Location.Latitude, 0.01)
		require.InEpsilon(t, -122.08, result.Location.Longitude, 0.01)
		mockClient.AssertExpectations(t)
	})
}
