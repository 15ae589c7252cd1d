// Package main is the entry point for the terminal bridge.
//
// A bridge owns one pseudo-terminal and one shell. The relay that spawns it
// writes newline-delimited JSON control messages to stdin and reads output,
// exit and error events from stdout. Logs go to stderr so stdout carries
// nothing but protocol events.
//
// Configuration:
//   - Environment variables prefixed with PTYBRIDGE_
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Plain bridge, driven by the relay over stdio
//	./ptybridge
//
//	# Debug logs and a Prometheus endpoint
//	./ptybridge -dev -log-level debug -metrics-addr 127.0.0.1:9464
//
// Exit status is 0 after a clean shell exit or a close request and 1 when the
// shell could not be started or the event stream broke.
//
// Signals:
//   - SIGINT, SIGTERM: hang up the shell and exit once it is gone
package main
