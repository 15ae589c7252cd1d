// Package bridge runs one terminal session behind a line-delimited JSON
// control protocol.
//
// A Bridge is an explicit state machine (Idle, Active, Terminating,
// Terminated) driven by a single event loop. Helper goroutines only block on
// I/O and hand events to the loop: control lines from stdin, chunks read from
// the pty, the child's exit, and failed pty writes. Everything mutable,
// including the output buffer, is owned by the loop goroutine.
//
// Output is coalesced: pty bytes are buffered and emitted as one output
// message when the flush interval elapses or the buffer reaches its cap,
// whichever happens first. When the child exits the pty is drained and the
// buffer flushed before the exit message, so consumers always see all output
// before the termination notice.
package bridge
