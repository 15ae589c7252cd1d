package terminal

import (
	"io"
	"time"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/shared/id"
)

// Default terminal dimensions.
const (
	DefaultCols = 80
	DefaultRows = 24
)

// Options describes the shell to spawn. Zero values select the defaults.
type Options struct {
	Shell      string
	Args       []string
	WorkingDir string
	Cols       int
	Rows       int

	// Env is the base environment. Nil means the bridge's own environment.
	Env []string
}

// Handle abstracts PTY operations across Unix and Windows.
type Handle interface {
	io.ReadWriteCloser
	// Resize changes the PTY window size.
	Resize(cols, rows uint16) error
}

// ExitStatus mirrors how the child terminated. Exactly one of ExitCode and
// Signal is set for a normal wait; both are nil if the status is unknown.
type ExitStatus struct {
	ExitCode *int
	Signal   *string
}

// Info is the public representation of a session
type Info struct {
	ID         id.SessionID `json:"id"`
	Shell      string       `json:"shell"`
	Args       []string     `json:"args"`
	WorkingDir string       `json:"working_dir"`
	Cols       int          `json:"cols"`
	Rows       int          `json:"rows"`
	Pid        int          `json:"pid"`
	StartedAt  time.Time    `json:"started_at"`
}
