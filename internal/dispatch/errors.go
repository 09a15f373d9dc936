package dispatch

import "errors"

// Sentinel errors for message construction and delivery.
var (
	// ErrMalformedMessage indicates a payload failed validation at
	// construction time: empty content, missing dimensions for pixel
	// kinds, or an unknown kind.
	ErrMalformedMessage = errors.New("dispatch: malformed message")

	// ErrDeviceUnreachable indicates every delivery channel failed for a
	// device. There is no silent fallback behind it.
	ErrDeviceUnreachable = errors.New("dispatch: device unreachable")

	// ErrNoDevices indicates a send found no connected devices. The
	// message may have been queued for retry.
	ErrNoDevices = errors.New("dispatch: no connected devices")
)
