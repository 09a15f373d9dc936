// Package registry provides the client for the backend device registry.
//
// The registry is the authoritative record of which devices exist and who
// owns them. It is polled on demand — at service initialization and via
// explicit refresh — never pushed. Live connectivity comes from the broker
// and the command channel; a device listed here starts out offline until
// a transport reports otherwise.
package registry
