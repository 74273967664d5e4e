package policy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AlertKind enumerates the alert types the monitoring config can raise.
type AlertKind string

const (
	AlertHighFailureRate AlertKind = "HIGH_FAILURE_RATE"
	AlertCircuitOpen     AlertKind = "CIRCUIT_OPEN"
	AlertPoisonMessage   AlertKind = "POISON_MESSAGE"
	AlertDLQThreshold    AlertKind = "DLQ_THRESHOLD"
)

// Alert is pushed to a user-supplied callback; callback exceptions must
// not affect scheduling.
type Alert struct {
	Kind       AlertKind
	WorkflowID string
	NodeID     string
	Detail     string
}

// nodeCounters mirrors workflow.NodeMetrics but lives in this package to
// avoid an import cycle; the scheduler copies these into
// workflow.State.FailureMetrics after each node attempt's outcome.
type nodeCounters struct {
	TotalAttempts    int
	TotalFailures    int
	TotalSuccesses   int
	FailuresInWindow int
}

// Metrics tracks per-(workflowID,nodeID) attempt/failure/success counts and
// exports them as Prometheus counters, mirroring the role of
// langgraph-go's PrometheusMetrics for the scheduler's step latency.
//
// Safe for concurrent use across workflows.
type Metrics struct {
	mu      sync.Mutex
	byKey   map[string]*nodeCounters

	attemptsTotal  *prometheus.CounterVec
	failuresTotal  *prometheus.CounterVec
	successesTotal *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
	dlqSize        prometheus.Gauge
}

// NewMetrics creates a Metrics collector and registers its series on reg.
// Pass prometheus.NewRegistry() for an isolated registry, or nil to skip
// Prometheus registration entirely (counters are still tracked in-process).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		byKey: make(map[string]*nodeCounters),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dagflow_node_attempts_total",
			Help: "Total node execution attempts by workflow and node id.",
		}, []string{"workflow_id", "node_id"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dagflow_node_failures_total",
			Help: "Total node execution failures by workflow and node id.",
		}, []string{"workflow_id", "node_id"}),
		successesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dagflow_node_successes_total",
			Help: "Total node execution successes by workflow and node id.",
		}, []string{"workflow_id", "node_id"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dagflow_circuit_breaker_state",
			Help: "Circuit breaker state (0=CLOSED, 1=HALF_OPEN, 2=OPEN) by workflow and node id.",
		}, []string{"workflow_id", "node_id"}),
		dlqSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dagflow_dlq_size",
			Help: "Current dead-letter queue size.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.attemptsTotal, m.failuresTotal, m.successesTotal, m.breakerState, m.dlqSize} {
			_ = reg.Register(c) // duplicate registration is a caller error, not fatal here
		}
	}
	return m
}

func (m *Metrics) counters(workflowID, nodeID string) *nodeCounters {
	key := workflowID + "/" + nodeID
	c, ok := m.byKey[key]
	if !ok {
		c = &nodeCounters{}
		m.byKey[key] = c
	}
	return c
}

// RecordAttempt increments the attempt counter for (workflowID, nodeID).
func (m *Metrics) RecordAttempt(workflowID, nodeID string) {
	m.mu.Lock()
	m.counters(workflowID, nodeID).TotalAttempts++
	m.mu.Unlock()
	m.attemptsTotal.WithLabelValues(workflowID, nodeID).Inc()
}

// RecordFailure increments the failure counters for (workflowID, nodeID).
func (m *Metrics) RecordFailure(workflowID, nodeID string) {
	m.mu.Lock()
	c := m.counters(workflowID, nodeID)
	c.TotalFailures++
	c.FailuresInWindow++
	m.mu.Unlock()
	m.failuresTotal.WithLabelValues(workflowID, nodeID).Inc()
}

// RecordSuccess increments the success counter and resets the rolling
// failures-in-window count for (workflowID, nodeID).
func (m *Metrics) RecordSuccess(workflowID, nodeID string) {
	m.mu.Lock()
	c := m.counters(workflowID, nodeID)
	c.TotalSuccesses++
	c.FailuresInWindow = 0
	m.mu.Unlock()
	m.successesTotal.WithLabelValues(workflowID, nodeID).Inc()
}

// Snapshot returns a copy of the counters for (workflowID, nodeID), for
// folding into workflow.State.FailureMetrics.
func (m *Metrics) Snapshot(workflowID, nodeID string) (attempts, failures, successes, failuresInWindow int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters(workflowID, nodeID)
	return c.TotalAttempts, c.TotalFailures, c.TotalSuccesses, c.FailuresInWindow
}

// SetBreakerState exports the current breaker state as a Prometheus gauge
// value (0=CLOSED, 1=HALF_OPEN, 2=OPEN).
func (m *Metrics) SetBreakerState(workflowID, nodeID string, state BreakerState) {
	var v float64
	switch state {
	case HalfOpen:
		v = 1
	case Open:
		v = 2
	}
	m.breakerState.WithLabelValues(workflowID, nodeID).Set(v)
}

// SetDLQSize exports the current DLQ size as a Prometheus gauge value.
func (m *Metrics) SetDLQSize(n int) {
	m.dlqSize.Set(float64(n))
}

// FailureRate returns failures/attempts for (workflowID, nodeID), used to
// evaluate MonitoringConfig.FailureRateThreshold.
func (m *Metrics) FailureRate(workflowID, nodeID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.counters(workflowID, nodeID)
	if c.TotalAttempts == 0 {
		return 0
	}
	return float64(c.TotalFailures) / float64(c.TotalAttempts)
}

// emitAlert dispatches an alert to cfg's AlertHandler, if monitoring and
// alerting are enabled, swallowing any panic the handler raises.
func emitAlert(cfg *MonitoringConfig, alert Alert) {
	if cfg == nil || !cfg.Enabled || !cfg.AlertingEnabled || cfg.AlertHandler == nil {
		return
	}
	safeCall(func() { cfg.AlertHandler(alert) })
}
