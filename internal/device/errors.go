package device

import "errors"

// Sentinel errors for presence operations.
var (
	// ErrNotFound indicates the device is not in the presence map.
	ErrNotFound = errors.New("device: not found")

	// ErrUnknownMode indicates an unrecognised merge mode string.
	ErrUnknownMode = errors.New("device: unknown merge mode")
)

// ParseMergeMode validates a configured merge mode string.
//
// Returns:
//   - MergeMode: The parsed mode
//   - error: ErrUnknownMode for anything but the two known modes
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case ModeBrokerPrimary:
		return ModeBrokerPrimary, nil
	case ModeRPCPrimary:
		return ModeRPCPrimary, nil
	default:
		return "", ErrUnknownMode
	}
}
