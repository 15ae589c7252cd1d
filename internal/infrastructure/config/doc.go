// Package config provides 12-factor configuration management for the bridge.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables.
//
// Configuration Sections:
//   - Logging: Log level, format and output path (never stdout)
//   - Output: Coalescing flush interval, buffer cap and exit drain window
//   - Session: Grace period between terminate and kill
//   - Metrics: Optional Prometheus listen address
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	fmt.Printf("flushing every %s\n", cfg.Output.FlushInterval)
//
// Environment Variables:
//   - PTYBRIDGE_LOG_LEVEL, PTYBRIDGE_LOG_DEV, PTYBRIDGE_LOG_OUTPUT
//   - PTYBRIDGE_OUTPUT_FLUSH_INTERVAL, PTYBRIDGE_OUTPUT_MAX_BUFFER_SIZE, PTYBRIDGE_OUTPUT_DRAIN_TIMEOUT
//   - PTYBRIDGE_SESSION_KILL_TIMEOUT
//   - PTYBRIDGE_METRICS_ADDR
package config
