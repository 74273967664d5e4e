// Package policy implements the failure-handling policy engine:
// per-node retry schedules, a circuit breaker keyed by (workflowID, nodeID),
// a dead-letter queue with poison-message detection, and rolling failure
// metrics with an alert callback. It has no dependency on the workflow
// package so that workflow.NodeDef can embed a policy.Config without an
// import cycle.
package policy

import (
	"strings"
	"time"
)

// Strategy selects the failure-handling behavior for a node.
type Strategy string

const (
	FailFast            Strategy = "FAIL_FAST"
	RetryAndFail        Strategy = "RETRY_AND_FAIL"
	RetryAndSkip        Strategy = "RETRY_AND_SKIP"
	RetryAndDLQ         Strategy = "RETRY_AND_DLQ"
	CircuitBreaker      Strategy = "CIRCUIT_BREAKER"
	GracefulDegradation Strategy = "GRACEFUL_DEGRADATION"
)

// RetryConfig governs the retry schedule for a node.
//
// Attempt n (1-indexed) waits min(MaxDelay, Delay * Multiplier^(n-1)) before
// eligibility; Jitter multiplies that by a uniform factor in [0.5, 1.5].
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool

	// RetryableErrors / NonRetryableErrors hold case-insensitive substrings
	// matched against the error's message. An error is retryable iff it
	// matches no NonRetryableErrors entry and (RetryableErrors is empty or
	// it matches at least one entry).
	RetryableErrors    []string
	NonRetryableErrors []string
}

// Validate reports whether the configuration is internally consistent.
func (rc *RetryConfig) Validate() error {
	if rc == nil {
		return nil
	}
	if rc.MaxAttempts < 1 {
		return ErrInvalidRetryConfig
	}
	if rc.MaxDelay > 0 && rc.Delay > 0 && rc.MaxDelay < rc.Delay {
		return ErrInvalidRetryConfig
	}
	return nil
}

// Retryable reports whether err should be retried under this config.
func (rc *RetryConfig) Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	for _, bad := range rc.NonRetryableErrors {
		if strings.Contains(msg, strings.ToLower(bad)) {
			return false
		}
	}
	if len(rc.RetryableErrors) == 0 {
		return true
	}
	for _, ok := range rc.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(ok)) {
			return true
		}
	}
	return false
}

// CircuitBreakerConfig parameterizes the per-(workflowID,nodeID) breaker
// state machine.
type CircuitBreakerConfig struct {
	FailureThreshold int
	TimeWindow       time.Duration
	RecoveryTimeout  time.Duration
	SuccessThreshold int
	MonitoringWindow time.Duration
}

// DeadLetterConfig governs DLQ admission for RETRY_AND_DLQ and poisoned
// nodes under any strategy.
type DeadLetterConfig struct {
	Enabled         bool
	MaxRetries      int
	RetentionPeriod time.Duration
	Handler         func(Entry)
}

// MonitoringConfig governs the rolling-failure-rate and alert plumbing.
type MonitoringConfig struct {
	Enabled                   bool
	FailureRateThreshold      float64
	AlertingEnabled           bool
	MetricsCollectionInterval time.Duration
	RetentionPeriod           time.Duration
	AlertHandler              func(Alert)
}

// GracefulDegradationConfig configures the fallback-result substitution
// strategy.
type GracefulDegradationConfig struct {
	ContinueOnNodeFailure bool
	SkipDependentNodes    bool
	FallbackResults       map[string]any
}

// Config is the complete, resolved failure-handling configuration for a
// single node. The scheduler resolves it before Decide is called: the
// node's FailureHandling if set, otherwise the engine default; there is no
// workflow-level default.
type Config struct {
	Strategy                  Strategy
	Retry                     *RetryConfig
	CircuitBreaker            *CircuitBreakerConfig
	DeadLetter                *DeadLetterConfig
	Monitoring                *MonitoringConfig
	PoisonMessageThreshold    int
	GracefulDegradationConfig *GracefulDegradationConfig
}

// DefaultConfig returns the engine-default failure policy: FAIL_FAST with no
// retry, breaker, DLQ, or monitoring configured.
func DefaultConfig() Config {
	return Config{Strategy: FailFast}
}
