// Package core assembles the device connectivity service.
//
// The Service owns no business logic of its own: it wires the presence
// aggregator, broker transport, message dispatcher, registry client and
// status poller together, and exposes the lifecycle the presentation
// layer drives — Initialize, the send operations, RefreshDevices,
// Dispose.
//
// Dependencies arrive through the constructor, not globals, so every
// collaborator can be replaced by a test double and two services can
// coexist in one process. Calling a send operation before Initialize is
// a caller bug and fails fast with ErrNotInitialized rather than
// half-working against empty state.
package core
