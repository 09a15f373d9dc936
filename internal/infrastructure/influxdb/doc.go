// Package influxdb records connectivity telemetry for the device core.
//
// Three measurements are written:
//
//   - device_presence: online/offline transitions per device, tagged with
//     the source that observed them (registry, broker, rpc)
//   - delivery_outcome: per-device result of each delivery chain, tagged
//     with the channel that succeeded
//   - dispatch_batch: aggregate sent/failed counts per fan-out call
//
// Writes are batched and non-blocking. Telemetry is strictly best-effort:
// the dispatcher and aggregator never wait on InfluxDB, and write errors
// surface only through the error callback. The whole package is optional —
// when influxdb.enabled is false the service simply passes a nil client
// around and every call site guards on it.
package influxdb
