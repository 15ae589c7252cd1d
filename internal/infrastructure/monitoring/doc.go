/*
Package monitoring provides Prometheus metrics for a bridge process.

# Overview

Each bridge process serves one terminal, so metrics live on a private
registry owned by the Metrics value rather than the global default registry.
Exposition is optional: Serve starts a /metrics listener only when an
address is configured.

# Metrics

  - ptybridge_control_messages_total{type}: control lines by outcome
    (init, input, resize, close, unknown, invalid, malformed)
  - ptybridge_input_bytes_total: bytes forwarded to the pty
  - ptybridge_output_messages_total / ptybridge_output_bytes_total
  - ptybridge_flushes_total{trigger}: flushes by timer, size or final
  - ptybridge_flush_delay_seconds: time from first buffered byte to flush
  - ptybridge_session_state: 0 idle, 1 active, 2 terminating, 3 terminated
  - ptybridge_spawn_failures_total

# Usage

	metrics := monitoring.NewMetrics()
	srv := metrics.Serve(cfg.Metrics.Addr, logger)
	defer srv.Close()

	metrics.RecordControl("input")
	metrics.RecordFlush("timer", 12*time.Millisecond, 512)
*/
package monitoring
