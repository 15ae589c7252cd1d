//go:build windows

package terminal

import "os"

// hangup has no gentle equivalent on Windows; the console process is killed.
func hangup(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}

func exitStatus(state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{}
	}
	code := state.ExitCode()
	return ExitStatus{ExitCode: &code}
}
