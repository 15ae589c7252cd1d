package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/providers/terminal"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/shared/id"
)

const waitTimeout = 5 * time.Second

// fakeTerminal stands in for a PTY session. Output is fed by the test through
// a pipe and the exit status is delivered on demand.
type fakeTerminal struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	exitOnTerminate bool
	writeErr        error

	mu         sync.Mutex
	input      bytes.Buffer
	sizes      [][2]int
	terminated int
	killed     int

	exitCh   chan terminal.ExitStatus
	exitOnce sync.Once
	waitOnce sync.Once
	status   terminal.ExitStatus
}

func newFakeTerminal() *fakeTerminal {
	r, w := io.Pipe()
	return &fakeTerminal{
		outR:   r,
		outW:   w,
		exitCh: make(chan terminal.ExitStatus, 1),
	}
}

func (f *fakeTerminal) Read(p []byte) (int, error) { return f.outR.Read(p) }

func (f *fakeTerminal) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.input.Write(p)
}

func (f *fakeTerminal) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, [2]int{cols, rows})
	return nil
}

func (f *fakeTerminal) Terminate() error {
	f.mu.Lock()
	f.terminated++
	exit := f.exitOnTerminate
	f.mu.Unlock()

	if exit {
		f.hangUp(signalled("SIGHUP"))
	}
	return nil
}

func (f *fakeTerminal) Kill() error {
	f.mu.Lock()
	f.killed++
	f.mu.Unlock()

	f.hangUp(signalled("SIGKILL"))
	return nil
}

func (f *fakeTerminal) Wait() terminal.ExitStatus {
	f.waitOnce.Do(func() {
		f.status = <-f.exitCh
	})
	return f.status
}

func (f *fakeTerminal) Close() error {
	return f.outR.Close()
}

func (f *fakeTerminal) Info() terminal.Info {
	return terminal.Info{ID: id.NewSessionID(), Shell: "/bin/fake", Cols: 80, Rows: 24, Pid: 42}
}

// output writes shell output. It returns once the bridge has read it.
func (f *fakeTerminal) output(s string) {
	_, _ = f.outW.Write([]byte(s))
}

// exit reports the child as exited while leaving the output side open.
func (f *fakeTerminal) exit(status terminal.ExitStatus) {
	f.exitOnce.Do(func() {
		f.exitCh <- status
	})
}

// hangUp reports the exit and ends the output stream, like a real pty does.
func (f *fakeTerminal) hangUp(status terminal.ExitStatus) {
	f.exit(status)
	_ = f.outW.Close()
}

func (f *fakeTerminal) Input() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input.String()
}

func (f *fakeTerminal) Sizes() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.sizes...)
}

func (f *fakeTerminal) Counts() (terminated, killed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated, f.killed
}

func exited(code int) terminal.ExitStatus {
	return terminal.ExitStatus{ExitCode: &code}
}

func signalled(name string) terminal.ExitStatus {
	return terminal.ExitStatus{Signal: &name}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, syscall.EPIPE }

type harness struct {
	t       *testing.T
	in      *io.PipeWriter
	out     *syncBuffer
	bridge  *Bridge
	metrics *monitoring.Metrics
	done    chan int

	mu      sync.Mutex
	spawned []terminal.Options
}

// startBridge runs a bridge whose sessions are served by opts.Spawn, or else
// by term. A nil term makes every spawn fail.
func startBridge(t *testing.T, ctx context.Context, term *fakeTerminal, out io.Writer, opts Options) *harness {
	t.Helper()

	inR, inW := io.Pipe()
	h := &harness{
		t:       t,
		in:      inW,
		metrics: monitoring.NewMetrics(),
		done:    make(chan int, 1),
	}
	if out == nil {
		h.out = &syncBuffer{}
		out = h.out
	}

	spawn := opts.Spawn
	opts.Metrics = h.metrics
	opts.Spawn = func(o terminal.Options) (Terminal, error) {
		h.mu.Lock()
		h.spawned = append(h.spawned, o)
		h.mu.Unlock()
		if spawn != nil {
			return spawn(o)
		}
		if term == nil {
			return nil, errors.New("failed to start PTY: exec: \"/no/such/shell\": stat /no/such/shell: no such file or directory")
		}
		return term, nil
	}

	h.bridge = New(out, opts)
	go func() {
		h.done <- h.bridge.Run(ctx, inR)
	}()

	t.Cleanup(func() { _ = inW.Close() })
	return h
}

func (h *harness) send(lines ...string) {
	for _, line := range lines {
		_, err := io.WriteString(h.in, line+"\n")
		require.NoError(h.t, err)
	}
}

func (h *harness) closeInput() {
	require.NoError(h.t, h.in.Close())
}

func (h *harness) wait() int {
	h.t.Helper()
	select {
	case code := <-h.done:
		return code
	case <-time.After(waitTimeout):
		h.t.Fatal("bridge did not terminate")
		return -1
	}
}

func (h *harness) spawnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.spawned)
}

func (h *harness) events() []map[string]interface{} {
	h.t.Helper()
	var events []map[string]interface{}
	for _, line := range strings.Split(h.out.String(), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]interface{}
		require.NoError(h.t, sonic.ConfigStd.UnmarshalFromString(line, &ev), line)
		events = append(events, ev)
	}
	return events
}

// outputText concatenates output events and checks none follows a terminal event.
func outputText(t *testing.T, events []map[string]interface{}) string {
	t.Helper()
	var sb strings.Builder
	for i, ev := range events {
		if ev["type"] != "output" {
			assert.Equal(t, len(events)-1, i, "terminal event must be last")
			continue
		}
		sb.WriteString(ev["data"].(string))
	}
	return sb.String()
}

func lastEvent(t *testing.T, events []map[string]interface{}) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, events)
	return events[len(events)-1]
}

func TestBridgeExitsCleanlyWithoutSession(t *testing.T) {
	h := startBridge(t, context.Background(), newFakeTerminal(), nil, Options{})

	h.closeInput()

	assert.Equal(t, ExitOK, h.wait())
	assert.Equal(t, StateTerminated, h.bridge.State())
	assert.Empty(t, h.out.String())
	assert.Zero(t, h.spawnCount())
}

func TestBridgeIgnoresInvalidAndEarlyMessages(t *testing.T) {
	h := startBridge(t, context.Background(), newFakeTerminal(), nil, Options{})

	h.send(
		"not json",
		"",
		`[1,2,3]`,
		`{"type":"bogus"}`,
		`{"data":"no type"}`,
		`{"type":"input","data":"ls\r"}`,
		`{"type":"resize","cols":100,"rows":30}`,
		`{"type":"close"}`,
		`{"type":"resize","cols":0,"rows":30}`,
	)
	h.closeInput()

	assert.Equal(t, ExitOK, h.wait())
	assert.Empty(t, h.out.String())
	assert.Zero(t, h.spawnCount())
	assert.Equal(t, float64(4), testutil.ToFloat64(h.metrics.ControlMessages.WithLabelValues("malformed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ControlMessages.WithLabelValues("unknown")))
}

func TestBridgeRelaysSessionIO(t *testing.T) {
	term := newFakeTerminal()
	h := startBridge(t, context.Background(), term, nil, Options{})

	h.send(
		`{"type":"init","shell":"/bin/sh","args":["-i"],"cwd":"/tmp","cols":100,"rows":30}`,
		`{"type":"input","data":"echo hi\r"}`,
	)
	require.Eventually(t, func() bool { return term.Input() == "echo hi\r" }, waitTimeout, time.Millisecond)

	term.output("echo hi\r\nhi\r\n")
	term.hangUp(exited(0))

	assert.Equal(t, ExitOK, h.wait())

	require.Equal(t, 1, h.spawnCount())
	assert.Equal(t, terminal.Options{Shell: "/bin/sh", Args: []string{"-i"}, WorkingDir: "/tmp", Cols: 100, Rows: 30}, h.spawned[0])

	events := h.events()
	assert.Equal(t, "echo hi\r\nhi\r\n", outputText(t, events))
	assert.Equal(t, map[string]interface{}{"type": "exit", "exitCode": float64(0), "signal": nil}, lastEvent(t, events))
}

func TestBridgeIgnoresSecondInit(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, context.Background(), term, nil, Options{})

	h.send(`{"type":"init"}`, `{"type":"init","shell":"/bin/zsh"}`, `{"type":"close"}`)

	assert.Equal(t, ExitOK, h.wait())
	assert.Equal(t, 1, h.spawnCount())

	events := h.events()
	require.Len(t, events, 1)
	assert.Equal(t, "exit", events[0]["type"])
}

func TestBridgeAppliesValidResizes(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, context.Background(), term, nil, Options{})

	h.send(
		`{"type":"init"}`,
		`{"type":"resize","cols":120,"rows":40}`,
		`{"type":"resize","cols":0,"rows":40}`,
		`{"type":"resize","cols":-5,"rows":40}`,
		`{"type":"resize","cols":"wide","rows":40}`,
		`{"type":"resize","cols":70000,"rows":40}`,
		`{"type":"resize","cols":90.7,"rows":20}`,
		`{"type":"close"}`,
	)

	assert.Equal(t, ExitOK, h.wait())
	assert.Equal(t, [][2]int{{120, 40}, {90, 20}}, term.Sizes())
}

func TestBridgeCloseHangsUpShell(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, context.Background(), term, nil, Options{})

	h.send(`{"type":"init"}`, `{"type":"close"}`)

	assert.Equal(t, ExitOK, h.wait())

	terminated, killed := term.Counts()
	assert.Equal(t, 1, terminated)
	assert.Zero(t, killed)
	assert.Equal(t, map[string]interface{}{"type": "exit", "exitCode": nil, "signal": "SIGHUP"}, lastEvent(t, h.events()))
}

func TestBridgeInputEndHangsUpShell(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, context.Background(), term, nil, Options{})

	h.send(`{"type":"init"}`)
	h.closeInput()

	assert.Equal(t, ExitOK, h.wait())

	terminated, _ := term.Counts()
	assert.Equal(t, 1, terminated)
	assert.Equal(t, "exit", lastEvent(t, h.events())["type"])
}

func TestBridgeCancelHangsUpShell(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, ctx, term, nil, Options{})

	h.send(`{"type":"init"}`)
	require.Eventually(t, func() bool { return h.spawnCount() == 1 }, waitTimeout, time.Millisecond)
	cancel()

	assert.Equal(t, ExitOK, h.wait())
	assert.Equal(t, "SIGHUP", lastEvent(t, h.events())["signal"])
}

func TestBridgeKillsShellThatIgnoresHangup(t *testing.T) {
	term := newFakeTerminal()
	h := startBridge(t, context.Background(), term, nil, Options{KillTimeout: 20 * time.Millisecond})

	h.send(`{"type":"init"}`, `{"type":"close"}`)

	assert.Equal(t, ExitOK, h.wait())

	terminated, killed := term.Counts()
	assert.Equal(t, 1, terminated)
	assert.Equal(t, 1, killed)
	assert.Equal(t, map[string]interface{}{"type": "exit", "exitCode": nil, "signal": "SIGKILL"}, lastEvent(t, h.events()))
}

func TestBridgeReportsSpawnFailure(t *testing.T) {
	h := startBridge(t, context.Background(), nil, nil, Options{})

	h.send(`{"type":"init","shell":"/no/such/shell"}`)

	assert.Equal(t, ExitFailure, h.wait())

	events := h.events()
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
	assert.Contains(t, events[0]["message"], "/no/such/shell")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SpawnFailures))
}

func TestBridgeDrainsOutputAfterExit(t *testing.T) {
	term := newFakeTerminal()
	h := startBridge(t, context.Background(), term, nil, Options{
		Output: config.OutputConfig{DrainTimeout: waitTimeout},
	})

	h.send(`{"type":"init"}`)
	term.output("before ")
	term.exit(exited(2))
	term.output("after")
	require.NoError(t, term.outW.Close())

	assert.Equal(t, ExitOK, h.wait())

	events := h.events()
	assert.Equal(t, "before after", outputText(t, events))
	assert.Equal(t, float64(2), lastEvent(t, events)["exitCode"])
}

func TestBridgeStopsDrainingAfterTimeout(t *testing.T) {
	term := newFakeTerminal()
	h := startBridge(t, context.Background(), term, nil, Options{
		Output: config.OutputConfig{DrainTimeout: 20 * time.Millisecond},
	})

	h.send(`{"type":"init"}`)
	term.output("partial")
	term.exit(exited(0))

	assert.Equal(t, ExitOK, h.wait())

	events := h.events()
	assert.Equal(t, "partial", outputText(t, events))
	assert.Equal(t, "exit", lastEvent(t, events)["type"])
}

// closeReleasedTerminal only produces its output once closed, like a pty whose
// last read completes as the bridge gives up waiting.
type closeReleasedTerminal struct {
	*fakeTerminal
	closed    chan struct{}
	closeOnce sync.Once
	sent      bool
}

func (c *closeReleasedTerminal) Read(p []byte) (int, error) {
	<-c.closed
	if !c.sent {
		c.sent = true
		return copy(p, "last words"), nil
	}
	return 0, io.EOF
}

func (c *closeReleasedTerminal) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func TestBridgeKeepsOutputReadDuringClose(t *testing.T) {
	term := &closeReleasedTerminal{fakeTerminal: newFakeTerminal(), closed: make(chan struct{})}
	h := startBridge(t, context.Background(), nil, nil, Options{
		Output: config.OutputConfig{DrainTimeout: 20 * time.Millisecond},
		Spawn: func(terminal.Options) (Terminal, error) {
			return term, nil
		},
	})

	h.send(`{"type":"init"}`)
	term.exit(exited(0))

	assert.Equal(t, ExitOK, h.wait())

	events := h.events()
	assert.Equal(t, "last words", outputText(t, events))
	assert.Equal(t, "exit", lastEvent(t, events)["type"])
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.OutputMessages))
}

func TestBridgeSplitsLargeOutput(t *testing.T) {
	const maxSize = 1024

	term := newFakeTerminal()
	h := startBridge(t, context.Background(), term, nil, Options{
		Output: config.OutputConfig{FlushInterval: time.Hour, MaxBufferSize: maxSize},
	})

	h.send(`{"type":"init"}`)
	payload := strings.Repeat("0123456789abcdef", 1000)
	term.output(payload)
	term.hangUp(exited(0))

	assert.Equal(t, ExitOK, h.wait())

	events := h.events()
	assert.Equal(t, payload, outputText(t, events))
	for _, ev := range events {
		if ev["type"] == "output" {
			assert.LessOrEqual(t, len(ev["data"].(string)), maxSize)
		}
	}
}

func TestBridgeFlushesOnDeadline(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, context.Background(), term, nil, Options{
		Output: config.OutputConfig{FlushInterval: 5 * time.Millisecond},
	})

	h.send(`{"type":"init"}`)
	term.output("$ ")

	require.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), `"data":"$ "`)
	}, waitTimeout, time.Millisecond, "prompt should arrive without further output")

	h.send(`{"type":"close"}`)
	assert.Equal(t, ExitOK, h.wait())
}

func TestBridgeExitsNonZeroWhenOutputFails(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	h := startBridge(t, context.Background(), term, failingWriter{}, Options{
		Output: config.OutputConfig{FlushInterval: time.Millisecond},
	})

	h.send(`{"type":"init"}`)
	term.output("lost")

	assert.Equal(t, ExitFailure, h.wait())

	terminated, _ := term.Counts()
	assert.Equal(t, 1, terminated)
	assert.Zero(t, testutil.ToFloat64(h.metrics.OutputMessages), "unsent output is not counted")
	assert.Zero(t, testutil.ToFloat64(h.metrics.OutputBytes))
}

func TestBridgeExitsNonZeroWhenInputFails(t *testing.T) {
	term := newFakeTerminal()
	term.exitOnTerminate = true
	term.writeErr = syscall.EIO
	h := startBridge(t, context.Background(), term, nil, Options{})

	h.send(`{"type":"init"}`, `{"type":"input","data":"ls\r"}`)

	assert.Equal(t, ExitFailure, h.wait())
	assert.Equal(t, "exit", lastEvent(t, h.events())["type"])
}

func TestReadLinesDeliversUnterminatedLastLine(t *testing.T) {
	b := New(io.Discard, Options{Logger: logging.NewNop()})
	lines := make(chan []byte)

	go b.readLines(strings.NewReader("{\"type\":\"init\"}\n{\"type\":\"close\"}"), lines, b.logger)

	var got []string
	for line := range lines {
		got = append(got, string(line))
	}
	assert.Equal(t, []string{"{\"type\":\"init\"}\n", "{\"type\":\"close\"}"}, got)
}
