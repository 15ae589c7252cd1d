package monitoring

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ptybridge/internal/logging"
)

func TestMetricsUsePrivateRegistries(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()

	a.RecordControl("init")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.ControlMessages.WithLabelValues("init")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ControlMessages.WithLabelValues("init")))
}

func TestRecordFlush(t *testing.T) {
	m := NewMetrics()

	m.RecordFlush("timer", 10*time.Millisecond, 100)
	m.RecordFlush("size", time.Millisecond, 65536)
	m.RecordFlush("final", 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("timer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("size")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("final")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutputMessages))
	assert.Equal(t, 65636.0, testutil.ToFloat64(m.OutputBytes))
}

func TestSetStateAndCounters(t *testing.T) {
	m := NewMetrics()

	m.SetState(2)
	m.RecordInput(7)
	m.IncSpawnFailures()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionState))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.InputBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpawnFailures))
}

func TestServeDisabledWithoutAddr(t *testing.T) {
	m := NewMetrics()

	srv := m.Serve("", logging.NewNop())
	assert.Nil(t, srv)
	assert.Empty(t, srv.Addr())
	assert.NoError(t, srv.Close())
}

func TestServeExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordControl("resize")

	srv := m.Serve("127.0.0.1:0", logging.NewNop())
	require.NotNil(t, srv)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `ptybridge_control_messages_total{type="resize"} 1`)
	assert.Contains(t, string(body), "ptybridge_uptime_seconds")
}
