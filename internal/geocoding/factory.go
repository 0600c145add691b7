package geocoding

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"googlemaps.github.io/maps"
)

const (
	// AnonymousRequestsPerSecond is the request ceiling used with a plain API key.
	AnonymousRequestsPerSecond = 2
	// PremiumRequestsPerSecond is the ceiling used with client id and private key credentials.
	PremiumRequestsPerSecond = 10

	defaultTimeout = 10 * time.Second
)

// ErrMissingCredentials is returned when neither an API key nor client credentials are configured.
var ErrMissingCredentials = errors.New("API key or client id and private key are required for Google provider")

// ProviderConfig holds configuration for creating a geocoding provider.
type ProviderConfig struct {
	APIKey     string        // API key for the public Geocoding API
	ClientID   string        // Client id of premium (Maps for Work) credentials
	PrivateKey string        // URL signing key paired with ClientID
	Timeout    time.Duration // Timeout of a single HTTP request, 10s when zero
	Logger     *slog.Logger  // Logger for the provider
}

// HasPremiumCredentials reports whether both halves of the client credentials are set.
func (c ProviderConfig) HasPremiumCredentials() bool {
	return c.ClientID != "" && c.PrivateKey != ""
}

// DefaultRequestsPerSecond returns the request ceiling matching the configured credentials,
// authenticated clients get a larger quota from Google.
func DefaultRequestsPerSecond(config ProviderConfig) float64 {
	if config.HasPremiumCredentials() {
		return PremiumRequestsPerSecond
	}

	return AnonymousRequestsPerSecond
}

// NewGoogleProvider creates a Google Maps geocoding provider.
// Client credentials take precedence over the API key when both are set.
// Request pacing is left to the batch engine, so the maps client limiter is not tightened here.
func NewGoogleProvider(config ProviderConfig) (*GoogleProvider, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	clientOpts := []maps.ClientOption{
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}

	switch {
	case config.HasPremiumCredentials():
		clientOpts = append(clientOpts, maps.WithClientIDAndSignature(config.ClientID, config.PrivateKey))
	case config.APIKey != "":
		clientOpts = append(clientOpts, maps.WithAPIKey(config.APIKey))
	default:
		return nil, ErrMissingCredentials
	}

	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return NewGoogleProviderWithClient(client, logger), nil
}
