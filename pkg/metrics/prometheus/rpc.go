package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/oncrpc/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Prometheus Metrics for the ONC RPC client
// ============================================================================

// RPCMetrics is the Prometheus implementation of metrics.RPCMetrics.
// All methods are nil-safe: calls on a nil *RPCMetrics are no-ops.
type RPCMetrics struct {
	// Calls counts completed requests.
	// Labels: program, procedure, outcome.
	Calls *prometheus.CounterVec

	// CallDuration observes request latency in seconds.
	// Labels: program, procedure.
	CallDuration *prometheus.HistogramVec

	// Bytes counts wire bytes, record marking included.
	// Label values for direction: "sent", "received".
	Bytes *prometheus.CounterVec

	// BindAttempts counts local privileged port bind attempts.
	// Label values for result: "success", "failure".
	BindAttempts *prometheus.CounterVec

	ConnectionsOpened prometheus.Counter
	ConnectionsClosed prometheus.Counter

	// OpenConnections tracks connections currently open.
	OpenConnections prometheus.Gauge
}

var _ metrics.RPCMetrics = (*RPCMetrics)(nil)

// NewRPCMetrics creates and registers RPC client metrics with the given
// Prometheus registerer. If reg is nil, metrics are created but not
// registered (useful for testing).
//
// On re-registration, existing collectors from the registry are reused so a
// second client in the same process reports into the same series.
func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	m := &RPCMetrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Total number of RPC calls by program, procedure and outcome",
		}, []string{"program", "procedure", "outcome"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Duration of RPC calls in seconds",
			Buckets: []float64{
				0.0001, // 100us - loopback
				0.0005, // 500us
				0.001,  // 1ms - LAN
				0.005,  // 5ms
				0.01,   // 10ms
				0.05,   // 50ms - WAN
				0.1,    // 100ms
				0.5,    // 500ms
				1,      // 1s
				5,      // 5s - near the default timeout
			},
		}, []string{"program", "procedure"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "bytes_total",
			Help:      "Total number of bytes sent and received, record marking included",
		}, []string{"direction"}),
		BindAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "bind_attempts_total",
			Help:      "Total number of local privileged port bind attempts",
		}, []string{"result"}),
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "connections_opened_total",
			Help:      "Total number of connections opened",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "connections_closed_total",
			Help:      "Total number of connections closed",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oncrpc",
			Subsystem: "client",
			Name:      "connections_open",
			Help:      "Current number of open connections",
		}),
	}

	if reg != nil {
		m.Calls = registerOrReuse(reg, m.Calls).(*prometheus.CounterVec)
		m.CallDuration = registerOrReuse(reg, m.CallDuration).(*prometheus.HistogramVec)
		m.Bytes = registerOrReuse(reg, m.Bytes).(*prometheus.CounterVec)
		m.BindAttempts = registerOrReuse(reg, m.BindAttempts).(*prometheus.CounterVec)
		m.ConnectionsOpened = registerOrReuse(reg, m.ConnectionsOpened).(prometheus.Counter)
		m.ConnectionsClosed = registerOrReuse(reg, m.ConnectionsClosed).(prometheus.Counter)
		m.OpenConnections = registerOrReuse(reg, m.OpenConnections).(prometheus.Gauge)
	}

	return m
}

// RecordCall increments the call counter and observes the call duration.
func (m *RPCMetrics) RecordCall(program, procedure uint32, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	prog := strconv.FormatUint(uint64(program), 10)
	proc := strconv.FormatUint(uint64(procedure), 10)

	m.Calls.WithLabelValues(prog, proc, outcome).Inc()
	m.CallDuration.WithLabelValues(prog, proc).Observe(duration.Seconds())
}

// RecordBytes adds n to the byte counter for direction.
func (m *RPCMetrics) RecordBytes(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Bytes.WithLabelValues(direction).Add(float64(n))
}

// RecordBindAttempt increments the bind attempt counter.
func (m *RPCMetrics) RecordBindAttempt(success bool) {
	if m == nil {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	m.BindAttempts.WithLabelValues(result).Inc()
}

// RecordConnectionOpened counts an opened connection.
func (m *RPCMetrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsOpened.Inc()
	m.OpenConnections.Inc()
}

// RecordConnectionClosed counts a closed connection.
func (m *RPCMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsClosed.Inc()
	m.OpenConnections.Dec()
}

// registerOrReuse registers a collector with the given registerer.
// If the collector is already registered, it returns the existing one
// from the registry. Panics on non-AlreadyRegisteredError failures.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
