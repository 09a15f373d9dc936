// Package broker owns the long-lived pub/sub session to the cloud IoT
// broker.
//
// Inbound, it subscribes to per-device status and property topics,
// decodes presence from each message and feeds a StatusSink. Malformed
// payloads are logged and dropped; nothing inbound can take the
// transport down.
//
// Outbound, PublishCommand writes a command envelope to the device's
// down/property topic, once, with no internal retry. Retry and fallback
// belong to the dispatcher.
//
// Connection state follows Disconnected, Connecting, Connected,
// Reconnecting and terminal Closed. Reconnects happen inside the
// underlying client with bounded backoff, and each attempt fetches a
// fresh credential, so an expired secret never re-enters the session.
package broker
