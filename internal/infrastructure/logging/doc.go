// Package logging provides structured logging for the occupancy service.
//
// It wraps log/slog with JSON output for production, text output for
// development, and default service/version fields on every entry.
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	engineLog := logger.Component("occupancy")
//	engineLog.Info("location occupied", "location_id", "kitchen")
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
