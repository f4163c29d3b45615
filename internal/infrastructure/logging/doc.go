// Package logging provides structured logging for litesql.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the command and its infrastructure.
//
// # Features
//
//   - Text output for terminals (default)
//   - JSON output for log collectors
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stderr"   # stderr, stdout, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("connected to DB", "name", cfg.Database.Name)
//	logger.Error("failed to connect to DB", "error", err)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
