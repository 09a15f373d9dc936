package credential

import "errors"

// Sentinel errors for credential operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoIdentity indicates no authenticated user identity is available.
	// Fatal to any operation requiring a credential; not retried.
	ErrNoIdentity = errors.New("credential: no authenticated identity")

	// ErrExchangeFailed indicates the authority exchange failed.
	// Retryable on the next access attempt; blocks broker reconnect
	// until resolved.
	ErrExchangeFailed = errors.New("credential: exchange failed")
)
