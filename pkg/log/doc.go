// Package log provides structured protocol capture for rmon.
//
// This package defines the Logger interface and Event types for recording
// what happened on every agent connection at three layers (transport, wire,
// session). It is separate from operational logging (slog): protocol capture
// is a machine-readable trace for later inspection with rmon-log.
//
// # Basic Usage
//
//	// Development: mirror protocol events to the console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Production: append to a capture file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/rmon/server.rlog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(console, file)
//
// # File Format
//
// Capture files are a concatenation of CBOR-encoded Event values with
// integer keys (.rlog extension).
package log
