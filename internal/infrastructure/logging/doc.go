// Package logging provides structured logging for the device connectivity core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("broker connected", "host", cfg.MQTT.Broker.Host)
//	logger.Error("credential exchange failed", "error", err)
//
// # Security
//
// Never log credentials, tokens, or API keys. Short-lived broker secrets
// in particular must not appear in log output.
package logging
