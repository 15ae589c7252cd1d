// Package terminal owns the pseudo-terminal and the interactive shell bound
// to it.
//
// A bridge process holds exactly one Session for its whole life. The session
// spawns the shell inside a PTY (creack/pty on Unix, ConPTY on Windows),
// exposes the PTY as an io.ReadWriter, and reports how the child exited.
//
// Features:
//   - Platform default shell ($SHELL or bash/sh on Unix, %COMSPEC% or PowerShell on Windows)
//   - 256-color TERM and UTF-8 locale injected only where the caller left them unset
//   - Terminal resizing
//   - Graceful hangup followed by a hard kill of the whole process group
//
// Example Usage:
//
//	sess, err := terminal.Start(terminal.Options{Cols: 80, Rows: 24}, logger)
//	if err != nil {
//		return err
//	}
//	defer sess.Close()
//
//	sess.Write([]byte("ls -la\r"))
//	status := sess.Wait()
package terminal
