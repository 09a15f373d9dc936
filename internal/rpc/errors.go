package rpc

import "errors"

// Sentinel errors for command channel operations.
var (
	// ErrCallFailed indicates the service could not be reached or
	// returned a malformed response.
	ErrCallFailed = errors.New("rpc: call failed")

	// ErrRejected indicates the service answered but reported failure
	// (success=false) for this call.
	ErrRejected = errors.New("rpc: rejected")
)
