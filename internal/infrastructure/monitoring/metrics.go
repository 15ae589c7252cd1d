package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Control channel metrics
	ControlMessages *prometheus.CounterVec
	InputBytes      prometheus.Counter

	// Output metrics
	OutputMessages prometheus.Counter
	OutputBytes    prometheus.Counter
	Flushes        *prometheus.CounterVec
	FlushDelay     prometheus.Histogram

	// Lifecycle metrics
	SessionState  prometheus.Gauge
	SpawnFailures prometheus.Counter
	Uptime        prometheus.GaugeFunc

	startTime time.Time
}

// NewMetrics creates a new metrics collector on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		ControlMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptybridge_control_messages_total",
				Help: "Control lines received, by message type or rejection reason",
			},
			[]string{"type"},
		),
		InputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_input_bytes_total",
				Help: "Bytes forwarded to the pty",
			},
		),

		OutputMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_output_messages_total",
				Help: "Output messages emitted",
			},
		),
		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_output_bytes_total",
				Help: "Pty bytes emitted in output messages",
			},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ptybridge_flushes_total",
				Help: "Output buffer flushes by trigger",
			},
			[]string{"trigger"},
		),
		FlushDelay: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ptybridge_flush_delay_seconds",
				Help:    "Time from the first buffered byte to its flush",
				Buckets: []float64{.001, .002, .004, .008, .016, .032, .064, .128},
			},
		),

		SessionState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ptybridge_session_state",
				Help: "Lifecycle state: 0 idle, 1 active, 2 terminating, 3 terminated",
			},
		),
		SpawnFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ptybridge_spawn_failures_total",
				Help: "Failed attempts to start the shell",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "ptybridge_uptime_seconds",
			Help: "Seconds since the bridge started",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordControl counts a control line by type or rejection reason
func (m *Metrics) RecordControl(kind string) {
	m.ControlMessages.WithLabelValues(kind).Inc()
}

// RecordInput counts bytes forwarded to the pty
func (m *Metrics) RecordInput(n int) {
	m.InputBytes.Add(float64(n))
}

// RecordFlush records one buffer flush. Empty flushes only count the trigger.
func (m *Metrics) RecordFlush(trigger string, delay time.Duration, n int) {
	m.Flushes.WithLabelValues(trigger).Inc()
	if n == 0 {
		return
	}
	m.FlushDelay.Observe(delay.Seconds())
	m.OutputMessages.Inc()
	m.OutputBytes.Add(float64(n))
}

// SetState records the lifecycle state ordinal
func (m *Metrics) SetState(state int) {
	m.SessionState.Set(float64(state))
}

// IncSpawnFailures counts a failed shell start
func (m *Metrics) IncSpawnFailures() {
	m.SpawnFailures.Inc()
}
