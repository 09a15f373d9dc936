package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrUnavailable indicates the registry could not be reached or
	// refused the request. The previous device list remains in effect.
	ErrUnavailable = errors.New("registry: unavailable")

	// ErrBadResponse indicates the registry returned a malformed body.
	ErrBadResponse = errors.New("registry: malformed response")
)
