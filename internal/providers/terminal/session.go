package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/shared/id"
)

// ErrInvalidSize is returned by Resize for dimensions outside [1, 65535].
var ErrInvalidSize = errors.New("invalid terminal size")

// Session represents the terminal session of a bridge process
type Session struct {
	ID         id.SessionID
	Shell      string
	Args       []string
	WorkingDir string
	StartedAt  time.Time

	// Process management
	cmd *exec.Cmd
	pty Handle

	logger *logging.Logger

	// Current dimensions
	mu   sync.RWMutex
	cols int
	rows int

	// Lifecycle
	waitOnce  sync.Once
	exit      ExitStatus
	closeOnce sync.Once
	closeErr  error
}

// Start spawns the shell inside a new PTY.
func Start(opts Options, logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	shell := opts.Shell
	if shell == "" {
		shell = defaultShell()
	}

	cols := dimensionOr(opts.Cols, DefaultCols)
	rows := dimensionOr(opts.Rows, DefaultRows)

	base := opts.Env
	if base == nil {
		base = os.Environ()
	}

	cmd := exec.Command(shell, opts.Args...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = buildEnv(base)

	handle, err := startPTY(cmd, cols, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	s := &Session{
		ID:         id.NewSessionID(),
		Shell:      shell,
		Args:       opts.Args,
		WorkingDir: opts.WorkingDir,
		StartedAt:  time.Now(),
		cmd:        cmd,
		pty:        handle,
		cols:       cols,
		rows:       rows,
	}
	s.logger = logger.WithFields(
		zap.String("session_id", s.ID.String()),
		zap.String("shell", shell),
		zap.Int("pid", s.Pid()),
	)

	s.logger.Info("shell session started",
		zap.Strings("args", opts.Args),
		zap.String("cwd", opts.WorkingDir),
		zap.Int("cols", cols),
		zap.Int("rows", rows))

	return s, nil
}

// Read reads shell output from the PTY.
func (s *Session) Read(p []byte) (int, error) {
	return s.pty.Read(p)
}

// Write sends input to the shell.
func (s *Session) Write(p []byte) (int, error) {
	return s.pty.Write(p)
}

// Resize changes terminal dimensions. On failure the previous size is kept.
func (s *Session) Resize(cols, rows int) error {
	if !validSize(cols, rows) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pty.Resize(uint16(cols), uint16(rows)); err != nil {
		return fmt.Errorf("failed to resize PTY: %w", err)
	}

	s.cols = cols
	s.rows = rows

	s.logger.Debug("terminal resized", zap.Int("cols", cols), zap.Int("rows", rows))
	return nil
}

// Size returns the current terminal dimensions.
func (s *Session) Size() (cols, rows int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cols, s.rows
}

// Pid returns the shell's process id.
func (s *Session) Pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Terminate asks the shell to exit: SIGHUP on Unix, a kill on Windows.
func (s *Session) Terminate() error {
	if s.cmd.Process == nil {
		return nil
	}
	s.logger.Info("terminating shell")
	return hangup(s.cmd.Process)
}

// Kill forcibly ends the shell and its process group.
func (s *Session) Kill() error {
	if s.cmd.Process == nil {
		return nil
	}
	s.logger.Warn("killing shell")
	return kill(s.cmd.Process)
}

// Wait blocks until the shell exits. It is safe to call more than once.
func (s *Session) Wait() ExitStatus {
	s.waitOnce.Do(func() {
		if s.cmd.Process == nil {
			return
		}
		state, err := s.cmd.Process.Wait()
		if err != nil {
			s.logger.Warn("wait for shell failed", zap.Error(err))
		}
		s.exit = exitStatus(state)

		fields := []zap.Field{zap.Duration("uptime", time.Since(s.StartedAt))}
		if s.exit.ExitCode != nil {
			fields = append(fields, zap.Int("exit_code", *s.exit.ExitCode))
		}
		if s.exit.Signal != nil {
			fields = append(fields, zap.String("signal", *s.exit.Signal))
		}
		s.logger.Info("shell exited", fields...)
	})
	return s.exit
}

// Close releases the PTY. Pending and future reads fail.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pty.Close()
	})
	return s.closeErr
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	cols, rows := s.Size()
	return Info{
		ID:         s.ID,
		Shell:      s.Shell,
		Args:       s.Args,
		WorkingDir: s.WorkingDir,
		Cols:       cols,
		Rows:       rows,
		Pid:        s.Pid(),
		StartedAt:  s.StartedAt,
	}
}

func validSize(cols, rows int) bool {
	return validDimension(cols) && validDimension(rows)
}

func validDimension(n int) bool {
	return n >= 1 && n <= 65535
}

func dimensionOr(n, fallback int) int {
	if validDimension(n) {
		return n
	}
	return fallback
}
