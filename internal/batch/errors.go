package batch

import (
	"errors"
	"fmt"
)

// ReasonRetryExhausted is the failure reason recorded when quota rejections never stopped.
const ReasonRetryExhausted = "retry-exhausted"

var (
	// ErrConfiguration is returned by New when the controller cannot be built.
	ErrConfiguration = errors.New("invalid batch geocoder configuration")
	// ErrProviderTransport marks per-address errors caused by a failed provider call.
	ErrProviderTransport = errors.New("provider transport error")
)

// AddressError is a non-fatal error about a single address, delivered to OnError handlers.
// It wraps either ErrProviderTransport or a *cache.PersistenceError.
type AddressError struct {
	Address string
	Err     error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address %q: %v", e.Address, e.Err)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}
