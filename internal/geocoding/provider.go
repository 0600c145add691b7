package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/atlas-batch/internal/models"
)

// Status is the status code reported by the geocoding provider for one request.
type Status string

// Status codes reported by the Google Geocoding API.
const (
	StatusOK             Status = "OK"
	StatusZeroResults    Status = "ZERO_RESULTS"
	StatusOverQueryLimit Status = "OVER_QUERY_LIMIT"
	StatusOverDailyLimit Status = "OVER_DAILY_LIMIT"
	StatusRequestDenied  Status = "REQUEST_DENIED"
	StatusInvalidRequest Status = "INVALID_REQUEST"
	StatusUnknownError   Status = "UNKNOWN_ERROR"
)

// Retryable reports whether a request rejected with this status may be sent again.
// Only quota rejections qualify, every other non-OK status is permanent.
func (s Status) Retryable() bool {
	return s == StatusOverQueryLimit
}

// ErrTransport wraps every failure to get a structured answer from the provider.
var ErrTransport = errors.New("geocoding provider transport failure")

// Result is a structured provider answer. Location is set only when Status is StatusOK.
type Result struct {
	Status   Status
	Location models.Coordinates
}

// Provider is an interface that defines a method for geocoding an address.
// A non-nil error means no structured status was received (network, timeout, decoding);
// provider rejections are reported through Result.Status instead.
type Provider interface {
	Geocode(ctx context.Context, address string) (Result, error)
}
