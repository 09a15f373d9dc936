// Package config provides configuration loading for the device connectivity core.
//
// Configuration is loaded from a YAML file, merged over hardcoded defaults,
// and finally overridden by ALAYA_* environment variables. The loaded
// configuration is validated before use; an invalid configuration fails
// startup rather than producing surprising runtime behaviour.
//
// # Sections
//
//   - cloud: product identity and credential authority endpoint
//   - mqtt: cloud broker connection and reconnect backoff
//   - rpc: primary command channel endpoint and timeout
//   - registry: authoritative device registry endpoint
//   - poll: status polling interval
//   - dispatch: presence merge mode and offline queue bound
//   - cache: SQLite presence cache
//   - influxdb: optional connectivity telemetry sink
//   - logging: level, format, output
//
// # Secrets
//
// The registry API key and InfluxDB token should be supplied through
// environment variables (ALAYA_REGISTRY_API_KEY, ALAYA_INFLUXDB_TOKEN)
// rather than committed to the config file.
package config
