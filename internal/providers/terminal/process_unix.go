//go:build !windows

package terminal

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// hangup asks the shell to exit the way a closed terminal would.
func hangup(p *os.Process) error {
	return p.Signal(syscall.SIGHUP)
}

// kill sends SIGKILL to the child's process group. The child is a session
// leader, so its pid is also the group id.
func kill(p *os.Process) error {
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err == nil {
		return nil
	}
	return p.Kill()
}

func exitStatus(state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		name := unix.SignalName(ws.Signal())
		if name == "" {
			name = ws.Signal().String()
		}
		return ExitStatus{Signal: &name}
	}
	code := state.ExitCode()
	return ExitStatus{ExitCode: &code}
}
