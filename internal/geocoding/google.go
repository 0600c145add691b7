package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/UnknownOlympus/atlas-batch/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// statusPattern matches the API status embedded in maps client errors ("maps: OVER_QUERY_LIMIT - ...").
var statusPattern = regexp.MustCompile(`^maps: ([A-Z_]+)(?: - |$)`)

// NewGoogleProviderWithClient wraps an already configured Google Maps client.
func NewGoogleProviderWithClient(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Geocode looks the address up with the Google Maps Geocoding API.
// API level rejections come back as a Result with the matching Status and a nil error,
// an empty result list is reported as ZERO_RESULTS.
func (gp *GoogleProvider) Geocode(ctx context.Context, address string) (Result, error) {
	gp.log.DebugContext(ctx, "Geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: sanitizeAddress(address)}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		if status, ok := statusFromError(err); ok {
			gp.log.DebugContext(ctx, "Google Maps rejected address", "address", address, "status", status)
			return Result{Status: status}, nil
		}
		return Result{}, fmt.Errorf("%w: failed to geocode address: %w", ErrTransport, err)
	}

	if len(geocodeResponse) == 0 {
		return Result{Status: StatusZeroResults}, nil
	}
	coords := geocodeResponse[0].Geometry.Location

	return Result{
		Status:   StatusOK,
		Location: models.Coordinates{Latitude: coords.Lat, Longitude: coords.Lng},
	}, nil
}

// sanitizeAddress drops apostrophes; the API answers ZERO_RESULTS for "Juliu'sstraße" style input.
func sanitizeAddress(address string) string {
	return strings.ReplaceAll(address, "'", "")
}

func statusFromError(err error) (Status, bool) {
	match := statusPattern.FindStringSubmatch(err.Error())
	if match == nil {
		return "", false
	}

	return Status(match[1]), true
}
