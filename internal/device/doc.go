// Package device tracks the unified presence map: which devices exist and
// which are believed online right now.
//
// Three sources feed the map and disagree routinely:
//
//   - the backend registry, which knows what exists but not what is live
//   - the message broker, via retained status messages and snapshots
//   - the command channel, via explicit status queries
//
// The Aggregator merges them under one of two modes. ModeBrokerPrimary
// trusts broker snapshots completely, removing anything a snapshot omits.
// ModeRPCPrimary treats snapshots as additive hints so a command channel
// answer is never silently undone by a device missing from a snapshot.
// In both modes a failed status query changes nothing: no information is
// not the same as offline.
//
// The daemon's own transport reports one device at a time through
// UpdateFromBroker, which never implies removals. MergeBrokerSnapshot —
// and with it ModeBrokerPrimary — is for embedding callers that collect a
// fleet-wide status view in one piece, such as a bulk read of retained
// status messages.
//
// Consumers observe transitions through Watch, a buffered channel per
// subscriber. Merges never block on a slow subscriber.
//
// An optional SQLite repository persists the map across restarts. It is a
// warm-start hint only: cached entries are seeded as disconnected and the
// in-memory map stays authoritative throughout.
package device
