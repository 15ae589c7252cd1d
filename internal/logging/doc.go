// Package logging provides structured logging using uber/zap.
//
// The bridge speaks its wire protocol on stdout, so every logger built here
// writes to stderr unless told otherwise.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Example Usage:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	logger.Info("session started", zap.String("shell", "/bin/bash"))
//	logger.Error("spawn failed", zap.Error(err))
package logging
