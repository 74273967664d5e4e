package policy_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/flowcraft/dagflow-go/workflow/policy"
)

func TestDecideRetriesUntilExhaustionThenFails(t *testing.T) {
	e := policy.NewEngine(nil)
	cfg := policy.Config{
		Strategy: policy.RetryAndFail,
		Retry:    &policy.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
	}
	rng := rand.New(rand.NewSource(1))
	cause := errors.New("boom")
	now := time.Now()

	d1 := e.Decide("wf", "n", cfg, 1, cause, now, rng)
	if d1.Outcome != policy.OutcomeRetry {
		t.Fatalf("attempt 1: outcome = %s, want RETRY", d1.Outcome)
	}
	d2 := e.Decide("wf", "n", cfg, 2, cause, now, rng)
	if d2.Outcome != policy.OutcomeRetry {
		t.Fatalf("attempt 2: outcome = %s, want RETRY", d2.Outcome)
	}
	d3 := e.Decide("wf", "n", cfg, 3, cause, now, rng)
	if d3.Outcome != policy.OutcomeFail {
		t.Fatalf("attempt 3 (at MaxAttempts): outcome = %s, want FAIL", d3.Outcome)
	}
}

func TestDecideRetryAndSkip(t *testing.T) {
	e := policy.NewEngine(nil)
	cfg := policy.Config{
		Strategy: policy.RetryAndSkip,
		Retry:    &policy.RetryConfig{MaxAttempts: 1},
	}
	d := e.Decide("wf", "n", cfg, 1, errors.New("boom"), time.Now(), nil)
	if d.Outcome != policy.OutcomeSkip {
		t.Fatalf("outcome = %s, want SKIP", d.Outcome)
	}
}

func TestCircuitBreakerOpensAndRefusesWithoutCountingFailures(t *testing.T) {
	e := policy.NewEngine(nil)
	cfg := policy.Config{
		Strategy: policy.CircuitBreaker,
		Retry:    &policy.RetryConfig{MaxAttempts: 1},
		CircuitBreaker: &policy.CircuitBreakerConfig{
			FailureThreshold: 2,
			TimeWindow:       time.Minute,
			RecoveryTimeout:  time.Hour,
		},
	}
	now := time.Now()
	cause := errors.New("down")

	if !e.Allow("wf", "n", cfg, now) {
		t.Fatal("breaker should allow the first attempt")
	}
	e.Decide("wf", "n", cfg, 1, cause, now, nil)
	if !e.Allow("wf", "n", cfg, now) {
		t.Fatal("breaker should still allow before threshold reached")
	}
	e.Decide("wf", "n", cfg, 1, cause, now, nil)

	if e.Allow("wf", "n", cfg, now) {
		t.Fatal("breaker should be OPEN and refuse further attempts after threshold failures")
	}

	_, before, _, _ := e.Metrics.Snapshot("wf", "n")
	refused := e.DecideRefused("wf", "n", cfg, 1, nil)
	if refused.Outcome != policy.OutcomeFail {
		t.Fatalf("refused outcome = %s, want FAIL under RetryAndFail-less CircuitBreaker default", refused.Outcome)
	}
	_, after, _, _ := e.Metrics.Snapshot("wf", "n")
	if after != before {
		t.Errorf("a refused attempt must not count as a new failure: before=%d after=%d", before, after)
	}
}

func TestPoisonMessageForcesDeadLetter(t *testing.T) {
	e := policy.NewEngine(nil)
	cfg := policy.Config{
		Strategy:               policy.RetryAndFail,
		Retry:                  &policy.RetryConfig{MaxAttempts: 100},
		PoisonMessageThreshold: 2,
	}
	d := e.Decide("wf", "n", cfg, 3, errors.New("boom"), time.Now(), nil)
	if d.Outcome != policy.OutcomeDeadLetter {
		t.Fatalf("outcome = %s, want DEAD_LETTER once attempts exceed the poison threshold", d.Outcome)
	}
	if e.DLQ.Len() != 1 {
		t.Errorf("DLQ.Len() = %d, want 1", e.DLQ.Len())
	}
}

func TestBreakerRecoversThroughHalfOpenOnSuccess(t *testing.T) {
	r := policy.NewBreakerRegistry()
	cfg := policy.CircuitBreakerConfig{
		FailureThreshold: 1,
		TimeWindow:       time.Minute,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 1,
	}
	now := time.Now()
	key := "wf/n"

	r.RecordFailure(key, cfg, now)
	if r.State(key) != policy.Open {
		t.Fatalf("state = %s, want OPEN after reaching the failure threshold", r.State(key))
	}
	if r.Allow(key, cfg, now) {
		t.Fatal("should not allow before RecoveryTimeout elapses")
	}

	later := now.Add(20 * time.Millisecond)
	if !r.Allow(key, cfg, later) {
		t.Fatal("should allow and transition to HALF_OPEN once RecoveryTimeout elapses")
	}
	if r.State(key) != policy.HalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", r.State(key))
	}

	r.RecordSuccess(key, cfg)
	if r.State(key) != policy.Closed {
		t.Fatalf("state = %s, want CLOSED after SuccessThreshold successes in HALF_OPEN", r.State(key))
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	r := policy.NewBreakerRegistry()
	cfg := policy.CircuitBreakerConfig{
		FailureThreshold: 1,
		TimeWindow:       time.Minute,
		RecoveryTimeout:  10 * time.Millisecond,
	}
	now := time.Now()
	key := "wf/n"

	r.RecordFailure(key, cfg, now)
	later := now.Add(20 * time.Millisecond)
	r.Allow(key, cfg, later) // transitions to HALF_OPEN as a side effect

	r.RecordFailure(key, cfg, later)
	if r.State(key) != policy.Open {
		t.Fatalf("state = %s, want OPEN again after a HALF_OPEN failure", r.State(key))
	}
}

func TestDLQPushInvokesHandlerOutsideLockAndSwallowsPanic(t *testing.T) {
	q := policy.NewDLQ()
	var gotID string
	cfg := &policy.DeadLetterConfig{
		Handler: func(e policy.Entry) {
			gotID = e.ID
			panic("handler boom")
		},
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("DLQ.Push must swallow a panicking handler, got: %v", r)
		}
	}()
	e := q.Push("wf", "n", "boom", 3, cfg)

	if gotID != e.ID {
		t.Errorf("handler observed ID %q, want %q", gotID, e.ID)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

func TestDecideFiresHighFailureRateAlert(t *testing.T) {
	e := policy.NewEngine(nil)
	var alerts []policy.Alert
	cfg := policy.Config{
		Strategy: policy.RetryAndFail,
		Retry:    &policy.RetryConfig{MaxAttempts: 1},
		Monitoring: &policy.MonitoringConfig{
			Enabled:              true,
			AlertingEnabled:      true,
			FailureRateThreshold: 0.5,
			AlertHandler:         func(a policy.Alert) { alerts = append(alerts, a) },
		},
	}
	e.Metrics.RecordAttempt("wf", "n")
	e.Decide("wf", "n", cfg, 1, errors.New("boom"), time.Now(), nil)

	found := false
	for _, a := range alerts {
		if a.Kind == policy.AlertHighFailureRate {
			found = true
		}
	}
	if !found {
		t.Errorf("alerts = %+v, want a HIGH_FAILURE_RATE alert once the threshold is crossed", alerts)
	}
}

func TestRetryConfigRetryableRespectsAllowDenyLists(t *testing.T) {
	rc := &policy.RetryConfig{
		MaxAttempts:        3,
		RetryableErrors:    []string{"timeout"},
		NonRetryableErrors: []string{"fatal"},
	}
	if !rc.Retryable(errors.New("request timeout exceeded")) {
		t.Error("an error matching RetryableErrors should be retryable")
	}
	if rc.Retryable(errors.New("unexpected error")) {
		t.Error("an error matching neither list, with RetryableErrors non-empty, should not be retryable")
	}
	if rc.Retryable(errors.New("fatal timeout")) {
		t.Error("NonRetryableErrors should take precedence over a RetryableErrors match")
	}
}

func TestGracefulDegradationFallsBackOrSkips(t *testing.T) {
	e := policy.NewEngine(nil)
	cfgWithFallback := policy.Config{
		Strategy: policy.GracefulDegradation,
		Retry:    &policy.RetryConfig{MaxAttempts: 1},
		GracefulDegradationConfig: &policy.GracefulDegradationConfig{
			FallbackResults: map[string]any{"n": "default"},
		},
	}
	d := e.Decide("wf", "n", cfgWithFallback, 1, errors.New("boom"), time.Now(), nil)
	if d.Outcome != policy.OutcomeFallback || d.FallbackResult != "default" {
		t.Fatalf("outcome = %+v, want FALLBACK with result \"default\"", d)
	}

	cfgNoFallback := policy.Config{
		Strategy: policy.GracefulDegradation,
		Retry:    &policy.RetryConfig{MaxAttempts: 1},
	}
	d2 := e.Decide("wf", "m", cfgNoFallback, 1, errors.New("boom"), time.Now(), nil)
	if d2.Outcome != policy.OutcomeSkip {
		t.Fatalf("outcome = %s, want SKIP when no fallback is configured", d2.Outcome)
	}
}
