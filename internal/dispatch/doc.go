// Package dispatch converts logical payloads into normalized wire
// messages and delivers them to connected devices.
//
// A Message is built by a kind-specific constructor that validates
// metadata up front: pixel kinds require dimensions, every kind requires
// content. Invalid payloads fail with ErrMalformedMessage before any
// network activity.
//
// Delivery runs through an ordered chain of strategies, command channel
// first, broker second. Each strategy either delivers or yields the
// device to the next one; when the chain is exhausted the device is
// reported unreachable. There is deliberately no simulated "it probably
// worked" terminal strategy.
//
// SendToAll snapshots the connected set once, attempts every device
// concurrently, and returns a Result in which each device appears exactly
// once, in SentTo or in Errors. Partial failure is data, not an error.
//
// When no device is connected, messages land on a small bounded in-memory
// queue and are replayed when the presence aggregator reports a device
// coming online. The queue drops oldest-first on overflow and is lost on
// restart; durable queueing belongs upstream.
package dispatch
