// Package rpc implements the primary command channel client.
//
// The command channel is a JSON-RPC 2.0 request/response path to the
// device-command service, independent of the broker. The dispatcher tries
// it first for every delivery; the status polling loop uses its
// get-device-status method to refresh live presence.
//
// # Wire format
//
// Request:
//
//	{"jsonrpc": "2.0", "method": "send-text",
//	 "params": {"productId": "...", "deviceName": "...", ...}, "id": "..."}
//
// Response:
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": "device offline"}
//
// Failures never panic or leak transport details upward: callers see
// ErrCallFailed (couldn't talk to the service) or ErrRejected (the
// service said no), both checkable with errors.Is.
package rpc
