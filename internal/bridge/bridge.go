package bridge

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/protocol"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/providers/terminal"
)

// Process exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
)

const readChunkSize = 32 * 1024

// Terminal is the session a bridge drives. *terminal.Session implements it.
type Terminal interface {
	io.ReadWriter
	Resize(cols, rows int) error
	Terminate() error
	Kill() error
	Wait() terminal.ExitStatus
	Close() error
	Info() terminal.Info
}

// Spawner starts the terminal session for an init message.
type Spawner func(opts terminal.Options) (Terminal, error)

// DefaultSpawner starts a real PTY session.
func DefaultSpawner(logger *logging.Logger) Spawner {
	return func(opts terminal.Options) (Terminal, error) {
		sess, err := terminal.Start(opts, logger)
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

// Options configures a Bridge. Zero values select the defaults.
type Options struct {
	Output      config.OutputConfig
	KillTimeout time.Duration
	Spawn       Spawner
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics
}

// Bridge owns the single terminal session of a bridge process. It is driven
// entirely by Run and must not be shared.
type Bridge struct {
	enc     *protocol.Encoder
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	state    State
	exitCode int

	term      Terminal
	coalescer *Coalescer
	writer    *ptyWriter

	// Event sources fed by helper goroutines. Nil channels are never ready.
	chunks    chan []byte
	exited    chan terminal.ExitStatus
	writeErrs chan error
	done      chan struct{}

	status     *terminal.ExitStatus
	readerDone bool
	killTimer  *time.Timer
	drainTimer *time.Timer
}

// New creates a bridge that writes protocol events to out.
func New(out io.Writer, opts Options) *Bridge {
	defaults := config.Default()
	if opts.Output.FlushInterval <= 0 {
		opts.Output.FlushInterval = defaults.Output.FlushInterval
	}
	if opts.Output.MaxBufferSize <= 0 {
		opts.Output.MaxBufferSize = defaults.Output.MaxBufferSize
	}
	if opts.Output.DrainTimeout <= 0 {
		opts.Output.DrainTimeout = defaults.Output.DrainTimeout
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = defaults.Session.KillTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	if opts.Spawn == nil {
		opts.Spawn = DefaultSpawner(opts.Logger)
	}

	return &Bridge{
		enc:       protocol.NewEncoder(out),
		opts:      opts,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		state:     StateIdle,
		writeErrs: make(chan error, 1),
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state. Only meaningful after Run returns
// or from within the loop.
func (b *Bridge) State() State {
	return b.state
}

// Run processes control lines from in until the bridge terminates and
// returns the process exit code. Cancelling ctx behaves like a close request.
func (b *Bridge) Run(ctx context.Context, in io.Reader) int {
	defer close(b.done)

	b.setState(StateIdle)

	lines := make(chan []byte)
	go b.readLines(in, lines, b.logger)

	ctxDone := ctx.Done()
	for b.state != StateTerminated {
		select {
		case <-ctxDone:
			ctxDone = nil
			b.logger.Info("bridge cancelled", zap.Error(ctx.Err()))
			b.hangup("cancelled")

		case line, ok := <-lines:
			if !ok {
				lines = nil
				b.hangup("control stream closed")
				continue
			}
			b.handleLine(line)

		case chunk, ok := <-b.chunks:
			if !ok {
				b.chunks = nil
				b.readerDone = true
				if b.status != nil {
					b.finish()
				}
				continue
			}
			b.bufferOutput(chunk)

		case <-b.coalescer.C():
			if err := b.coalescer.Expire(); err != nil {
				b.outputFailed(err)
			}

		case status := <-b.exited:
			b.exited = nil
			b.childExited(status)

		case err := <-b.writeErrs:
			b.inputFailed(err)

		case <-timerC(b.killTimer):
			b.killTimer = nil
			if err := b.term.Kill(); err != nil {
				b.logger.Warn("failed to kill shell", zap.Error(err))
			}

		case <-timerC(b.drainTimer):
			b.drainTimer = nil
			b.logger.Debug("output drain timed out")
			b.finish()
		}
	}

	return b.exitCode
}

// handleLine decodes one control line and dispatches it. Every rejected line
// is dropped without a reply.
func (b *Bridge) handleLine(line []byte) {
	msg, err := protocol.Decode(line)
	if err != nil {
		kind := "invalid"
		switch {
		case errors.Is(err, protocol.ErrMalformed):
			kind = "malformed"
		case errors.Is(err, protocol.ErrUnknownType):
			kind = "unknown"
		}
		b.metrics.RecordControl(kind)
		b.logger.Debug("control message ignored", zap.String("reason", kind), zap.Error(err))
		return
	}
	b.metrics.RecordControl(string(msg.Type()))

	switch m := msg.(type) {
	case protocol.Init:
		b.handleInit(m)
	case protocol.Input:
		b.handleInput(m)
	case protocol.Resize:
		b.handleResize(m)
	case protocol.Close:
		if b.state == StateActive {
			b.terminate("close requested")
		}
	default:
		b.logger.Debug("control message ignored", zap.String("type", string(msg.Type())))
	}
}

func (b *Bridge) handleInit(m protocol.Init) {
	if b.state != StateIdle {
		b.logger.Debug("duplicate init ignored", zap.String("state", b.state.String()))
		return
	}

	term, err := b.opts.Spawn(terminal.Options{
		Shell:      m.Shell,
		Args:       m.Args,
		WorkingDir: m.Cwd,
		Cols:       m.Cols,
		Rows:       m.Rows,
	})
	if err != nil {
		b.metrics.IncSpawnFailures()
		b.logger.Error("failed to spawn shell", zap.Error(err))
		if werr := b.enc.WriteError(err.Error()); werr != nil {
			b.logger.Error("failed to report spawn failure", zap.Error(werr))
		}
		b.exitCode = ExitFailure
		b.setState(StateTerminated)
		return
	}

	info := term.Info()
	b.logger = b.logger.WithFields(zap.String("session_id", info.ID.String()))

	b.term = term
	b.coalescer = NewCoalescer(b.opts.Output.FlushInterval, b.opts.Output.MaxBufferSize, b.emit)
	b.chunks = make(chan []byte, 16)
	b.exited = make(chan terminal.ExitStatus, 1)
	b.writer = newPTYWriter(term, b.writeErrs, b.done)

	go b.readOutput(term, b.chunks)
	go b.waitExit(term, b.exited)
	go b.writer.run()

	b.setState(StateActive)
	b.logger.Info("session active",
		zap.String("shell", info.Shell),
		zap.Int("pid", info.Pid),
		zap.Int("cols", info.Cols),
		zap.Int("rows", info.Rows))
}

func (b *Bridge) handleInput(m protocol.Input) {
	if b.state != StateActive {
		return
	}
	if len(m.Data) == 0 {
		return
	}
	b.writer.Enqueue([]byte(m.Data))
	b.metrics.RecordInput(len(m.Data))
}

func (b *Bridge) handleResize(m protocol.Resize) {
	if b.state != StateActive {
		return
	}
	if err := b.term.Resize(m.Cols, m.Rows); err != nil {
		b.logger.Debug("resize ignored", zap.Error(err))
	}
}

// hangup handles the loss of the controller: an idle bridge simply exits,
// an active one shuts its session down first.
func (b *Bridge) hangup(reason string) {
	switch b.state {
	case StateIdle:
		b.logger.Info("exiting without session", zap.String("reason", reason))
		b.setState(StateTerminated)
	case StateActive:
		b.terminate(reason)
	}
}

// terminate asks the shell to exit and arms the kill escalation.
func (b *Bridge) terminate(reason string) {
	b.logger.Info("terminating session", zap.String("reason", reason))
	b.setState(StateTerminating)

	if b.status != nil {
		return
	}
	if err := b.term.Terminate(); err != nil {
		b.logger.Warn("failed to signal shell", zap.Error(err))
	}
	b.killTimer = time.NewTimer(b.opts.KillTimeout)
}

// childExited starts the drain: remaining pty output is read until EOF or
// the drain timeout before the exit notice goes out.
func (b *Bridge) childExited(status terminal.ExitStatus) {
	b.status = &status
	if b.state == StateActive {
		b.setState(StateTerminating)
	}
	stopTimer(b.killTimer)
	b.killTimer = nil

	if b.readerDone {
		b.finish()
		return
	}
	b.drainTimer = time.NewTimer(b.opts.Output.DrainTimeout)
}

// finish flushes all output, emits the exit notice and ends the loop.
func (b *Bridge) finish() {
	stopTimer(b.drainTimer)
	b.drainTimer = nil

	if err := b.term.Close(); err != nil {
		b.logger.Debug("failed to close pty", zap.Error(err))
	}

	// Closing the pty ends the reader. Collect what it already read, bounded
	// in case a platform leaves the read blocked.
	if b.chunks != nil {
		deadline := time.NewTimer(b.opts.Output.DrainTimeout)
		for b.chunks != nil {
			select {
			case chunk, ok := <-b.chunks:
				if !ok {
					b.chunks = nil
					continue
				}
				b.bufferOutput(chunk)
			case <-deadline.C:
				b.logger.Debug("pty reader did not stop after close")
				b.chunks = nil
			}
		}
		deadline.Stop()
	}

	if err := b.coalescer.Flush(); err != nil {
		b.outputFailed(err)
	}

	var status terminal.ExitStatus
	if b.status != nil {
		status = *b.status
	}
	if err := b.enc.WriteExit(status.ExitCode, status.Signal); err != nil && !errors.Is(err, protocol.ErrEncoderBroken) {
		b.logger.Error("failed to write exit event", zap.Error(err))
		b.exitCode = ExitFailure
	}

	b.setState(StateTerminated)
}

func (b *Bridge) bufferOutput(chunk []byte) {
	if err := b.coalescer.Write(chunk); err != nil {
		b.outputFailed(err)
	}
}

func (b *Bridge) emit(chunk Chunk) error {
	err := b.enc.WriteOutput(chunk.Data)
	if errors.Is(err, protocol.ErrEncoderBroken) {
		return nil
	}
	if err != nil {
		return err
	}
	b.metrics.RecordFlush(string(chunk.Trigger), chunk.Delay, len(chunk.Data))
	return nil
}

// outputFailed handles a broken event stream. Nobody is listening any more,
// so the session is shut down and the process will exit non-zero.
func (b *Bridge) outputFailed(err error) {
	b.logger.Error("failed to write output", zap.Error(err))
	b.exitCode = ExitFailure
	if b.state == StateActive {
		b.terminate("output stream failed")
	}
}

// inputFailed handles a failed pty write while the shell should be alive.
func (b *Bridge) inputFailed(err error) {
	if b.state != StateActive {
		b.logger.Debug("pty write failed during shutdown", zap.Error(err))
		return
	}
	b.logger.Error("failed to write to pty", zap.Error(err))
	b.exitCode = ExitFailure
	b.terminate("pty write failed")
}

func (b *Bridge) setState(s State) {
	if b.state != s {
		b.logger.Debug("state change", zap.String("from", b.state.String()), zap.String("to", s.String()))
	}
	b.state = s
	b.metrics.SetState(int(s))
}

// readLines delivers control lines in order and closes lines at EOF. A final
// line without a trailing newline is still delivered.
func (b *Bridge) readLines(in io.Reader, lines chan<- []byte, logger *logging.Logger) {
	defer close(lines)

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case lines <- line:
			case <-b.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("control stream read failed", zap.Error(err))
			}
			return
		}
	}
}

// readOutput copies pty output into chunks until the pty is closed or the
// child side hangs up.
func (b *Bridge) readOutput(r io.Reader, chunks chan<- []byte) {
	defer close(chunks)

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-b.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (b *Bridge) waitExit(t Terminal, exited chan<- terminal.ExitStatus) {
	exited <- t.Wait()
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
