package policy

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome is what the scheduler should do with a node after Decide runs.
type Outcome string

const (
	// OutcomeRetry means wait Delay then re-attempt the node.
	OutcomeRetry Outcome = "RETRY"
	// OutcomeFail means mark the node FAILED (and, under FAIL_FAST /
	// RETRY_AND_FAIL exhaustion, the whole workflow FAILED).
	OutcomeFail Outcome = "FAIL"
	// OutcomeSkip means mark the node SKIPPED.
	OutcomeSkip Outcome = "SKIP"
	// OutcomeDeadLetter means push to the DLQ and treat as SKIPPED.
	OutcomeDeadLetter Outcome = "DEAD_LETTER"
	// OutcomeFallback means complete the node with FallbackResult.
	OutcomeFallback Outcome = "FALLBACK"
)

// Decision is what Decide returns after a node attempt fails.
type Decision struct {
	Outcome        Outcome
	Delay          time.Duration
	FallbackResult any
	Reason         string
}

// Engine combines the breaker registry, dead-letter queue, and metrics
// collector that back Decide behind one execution facade.
type Engine struct {
	Breaker *BreakerRegistry
	DLQ     *DLQ
	Metrics *Metrics
}

// NewEngine creates an Engine with fresh breaker, DLQ and metrics state.
// Pass a prometheus.Registerer (or nil) through to the metrics collector.
func NewEngine(reg prometheus.Registerer) *Engine {
	return &Engine{
		Breaker: NewBreakerRegistry(),
		DLQ:     NewDLQ(),
		Metrics: NewMetrics(reg),
	}
}

func breakerKey(workflowID, nodeID string) string {
	return workflowID + "/" + nodeID
}

// Allow reports whether a node attempt under a CIRCUIT_BREAKER policy may
// proceed. Callers must check this before invoking the handler for any node
// whose effective strategy is CircuitBreaker; a false return means the
// scheduler treats the node as failed with "circuit open" without calling
// the handler or Decide at all, and without counting against the rolling
// failure window.
func (e *Engine) Allow(workflowID, nodeID string, cfg Config, now time.Time) bool {
	if cfg.Strategy != CircuitBreaker || cfg.CircuitBreaker == nil {
		return true
	}
	return e.Breaker.Allow(breakerKey(workflowID, nodeID), *cfg.CircuitBreaker, now)
}

// RecordSuccess folds a successful attempt into metrics and, for
// CIRCUIT_BREAKER nodes, the breaker state.
func (e *Engine) RecordSuccess(workflowID, nodeID string, cfg Config) {
	e.Metrics.RecordSuccess(workflowID, nodeID)
	if cfg.Strategy == CircuitBreaker && cfg.CircuitBreaker != nil {
		key := breakerKey(workflowID, nodeID)
		e.Breaker.RecordSuccess(key, *cfg.CircuitBreaker)
		e.Metrics.SetBreakerState(workflowID, nodeID, e.Breaker.State(key))
	}
	e.checkFailureRate(workflowID, nodeID, cfg)
}

// Decide evaluates a failed attempt and returns what the scheduler should do
// next. attempt is the 1-indexed attempt number that just failed; rng seeds
// retry jitter deterministically (nil falls back to the package-global
// source).
func (e *Engine) Decide(workflowID, nodeID string, cfg Config, attempt int, cause error, now time.Time, rng *rand.Rand) Decision {
	e.Metrics.RecordFailure(workflowID, nodeID)

	if cfg.Strategy == CircuitBreaker && cfg.CircuitBreaker != nil {
		key := breakerKey(workflowID, nodeID)
		e.Breaker.RecordFailure(key, *cfg.CircuitBreaker, now)
		state := e.Breaker.State(key)
		e.Metrics.SetBreakerState(workflowID, nodeID, state)
		if state == Open {
			emitAlert(cfg.Monitoring, Alert{Kind: AlertCircuitOpen, WorkflowID: workflowID, NodeID: nodeID, Detail: "breaker opened"})
		}
	}

	if cfg.PoisonMessageThreshold > 0 && attempt > cfg.PoisonMessageThreshold {
		emitAlert(cfg.Monitoring, Alert{Kind: AlertPoisonMessage, WorkflowID: workflowID, NodeID: nodeID, Detail: "cumulative attempts exceeded poison threshold"})
		e.deadLetter(workflowID, nodeID, cfg, attempt, cause)
		return Decision{Outcome: OutcomeDeadLetter, Reason: "poison message: forced to dead-letter queue"}
	}

	e.checkFailureRate(workflowID, nodeID, cfg)

	if cfg.Strategy != FailFast && canRetry(cfg, attempt, cause) {
		return Decision{Outcome: OutcomeRetry, Delay: cfg.Retry.NextDelay(attempt+1, rng)}
	}

	switch cfg.Strategy {
	case RetryAndSkip:
		return Decision{Outcome: OutcomeSkip, Reason: "retries exhausted"}
	case RetryAndDLQ:
		e.deadLetter(workflowID, nodeID, cfg, attempt, cause)
		return Decision{Outcome: OutcomeDeadLetter, Reason: "retries exhausted"}
	case GracefulDegradation:
		if cfg.GracefulDegradationConfig != nil {
			if v, ok := cfg.GracefulDegradationConfig.FallbackResults[nodeID]; ok {
				return Decision{Outcome: OutcomeFallback, FallbackResult: v, Reason: "fallback result substituted"}
			}
		}
		return Decision{Outcome: OutcomeSkip, Reason: "no fallback configured, degrading to skip"}
	default: // FailFast, RetryAndFail, CircuitBreaker
		return Decision{Outcome: OutcomeFail, Reason: "retries exhausted or not retryable"}
	}
}

// DecideRefused is Decide's counterpart for an attempt the breaker itself
// refused (Allow returned false): it still applies the retry/skip/fail
// schedule, but does not record a new failure against the rolling window
// or breaker state, since the breaker is already OPEN.
func (e *Engine) DecideRefused(workflowID, nodeID string, cfg Config, attempt int, rng *rand.Rand) Decision {
	if cfg.Strategy != FailFast && canRetry(cfg, attempt, errCircuitOpen{}) {
		return Decision{Outcome: OutcomeRetry, Delay: cfg.Retry.NextDelay(attempt+1, rng), Reason: "circuit open"}
	}
	switch cfg.Strategy {
	case RetryAndSkip:
		return Decision{Outcome: OutcomeSkip, Reason: "circuit open"}
	case RetryAndDLQ:
		e.deadLetter(workflowID, nodeID, cfg, attempt, errCircuitOpen{})
		return Decision{Outcome: OutcomeDeadLetter, Reason: "circuit open"}
	case GracefulDegradation:
		if cfg.GracefulDegradationConfig != nil {
			if v, ok := cfg.GracefulDegradationConfig.FallbackResults[nodeID]; ok {
				return Decision{Outcome: OutcomeFallback, FallbackResult: v, Reason: "circuit open"}
			}
		}
		return Decision{Outcome: OutcomeSkip, Reason: "circuit open"}
	default:
		return Decision{Outcome: OutcomeFail, Reason: "circuit open"}
	}
}

type errCircuitOpen struct{}

func (errCircuitOpen) Error() string { return "circuit open" }

func (e *Engine) deadLetter(workflowID, nodeID string, cfg Config, attempts int, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	e.DLQ.Push(workflowID, nodeID, msg, attempts, cfg.DeadLetter)
	size := e.DLQ.Len()
	e.Metrics.SetDLQSize(size)
	if cfg.PoisonMessageThreshold > 0 && size >= cfg.PoisonMessageThreshold {
		emitAlert(cfg.Monitoring, Alert{Kind: AlertDLQThreshold, WorkflowID: workflowID, NodeID: nodeID, Detail: "dead-letter queue size at or above threshold"})
	}
}

func (e *Engine) checkFailureRate(workflowID, nodeID string, cfg Config) {
	if cfg.Monitoring == nil || !cfg.Monitoring.Enabled || cfg.Monitoring.FailureRateThreshold <= 0 {
		return
	}
	if e.Metrics.FailureRate(workflowID, nodeID) >= cfg.Monitoring.FailureRateThreshold {
		emitAlert(cfg.Monitoring, Alert{Kind: AlertHighFailureRate, WorkflowID: workflowID, NodeID: nodeID, Detail: "rolling failure rate at or above threshold"})
	}
}

// canRetry reports whether another attempt should be made for a node whose
// attempt-th try just failed with cause, under cfg.
func canRetry(cfg Config, attempt int, cause error) bool {
	rc := cfg.Retry
	if rc == nil || rc.MaxAttempts < 1 {
		return false
	}
	if attempt >= rc.MaxAttempts {
		return false
	}
	return rc.Retryable(cause)
}
