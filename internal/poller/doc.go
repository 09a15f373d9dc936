// Package poller runs the periodic status refresh loop.
//
// On each tick, if any devices are known, it queries their live status
// over the command channel and merges the answers into the presence
// aggregator. The loop is deliberately conservative: an empty device
// list makes the tick a no-op, a query failure changes nothing, and a
// tick that fires mid-round is skipped rather than stacked.
//
// Start and Stop are idempotent. Stop waits for the loop goroutine to
// exit, after which the poller originates no further merges.
package poller
