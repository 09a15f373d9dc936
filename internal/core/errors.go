package core

import "errors"

// ErrNotInitialized is returned by any operation invoked before
// Initialize has completed, or after Dispose.
var ErrNotInitialized = errors.New("core: service not initialized")
