//go:build !windows

package bridge

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/providers/terminal"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func newRealHarness(t *testing.T) *harness {
	t.Helper()
	return startBridge(t, context.Background(), nil, nil, Options{
		KillTimeout: time.Second,
		Spawn:       DefaultSpawner(logging.NewNop()),
	})
}

func TestBridgeRunsRealShell(t *testing.T) {
	requireShell(t)

	h := newRealHarness(t)
	h.send(
		`{"type":"init","shell":"/bin/sh","cols":80,"rows":24}`,
		`{"type":"input","data":"echo hi\r"}`,
		`{"type":"input","data":"exit\r"}`,
	)

	assert.Equal(t, ExitOK, h.wait())

	events := h.events()
	assert.Contains(t, outputText(t, events), "hi")
	assert.Equal(t, map[string]interface{}{"type": "exit", "exitCode": float64(0), "signal": nil}, lastEvent(t, events))
}

func TestBridgeClosesRealShell(t *testing.T) {
	requireShell(t)

	h := newRealHarness(t)
	h.send(`{"type":"init","shell":"/bin/sh"}`, `{"type":"close"}`)

	start := time.Now()
	assert.Equal(t, ExitOK, h.wait())
	assert.Less(t, time.Since(start), 2*time.Second)

	last := lastEvent(t, h.events())
	assert.Equal(t, "exit", last["type"])
	signal, _ := last["signal"].(string)
	assert.True(t, last["exitCode"] != nil || strings.HasPrefix(signal, "SIG"), "exit event %v", last)
}

func TestBridgeReportsMissingShell(t *testing.T) {
	h := newRealHarness(t)
	h.send(`{"type":"init","shell":"/no/such/shell"}`)

	assert.Equal(t, ExitFailure, h.wait())

	events := h.events()
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0]["type"])
	assert.NotEmpty(t, events[0]["message"])
}

var _ Terminal = (*terminal.Session)(nil)
