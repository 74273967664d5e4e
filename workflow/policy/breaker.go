package policy

import (
	"sync"
	"time"
)

// BreakerState is one of the three circuit-breaker states.
type BreakerState string

const (
	Closed   BreakerState = "CLOSED"
	Open     BreakerState = "OPEN"
	HalfOpen BreakerState = "HALF_OPEN"
)

// breakerEntry is the mutable state for one (workflowID, nodeID) key.
type breakerEntry struct {
	state BreakerState

	// failureTimestamps records failures within the rolling TimeWindow used
	// by CLOSED to decide when to trip.
	failureTimestamps []time.Time

	openedAt           time.Time
	halfOpenSuccesses int
}

// BreakerRegistry holds circuit-breaker state for every (workflowID,nodeID)
// key a CIRCUIT_BREAKER-policy node has been evaluated under. It is safe
// for concurrent use across workflows, keyed independently per node so one
// workflow's failures never trip another's breaker.
type BreakerRegistry struct {
	mu      sync.Mutex
	entries map[string]*breakerEntry
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{entries: make(map[string]*breakerEntry)}
}

func (r *BreakerRegistry) entry(key string) *breakerEntry {
	e, ok := r.entries[key]
	if !ok {
		e = &breakerEntry{state: Closed}
		r.entries[key] = e
	}
	return e
}

// State returns the current breaker state for key, without side effects.
func (r *BreakerRegistry) State(key string) BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(key).state
}

// Allow reports whether an execution attempt under key may proceed, given
// cfg. It performs the OPEN -> HALF_OPEN transition as a side effect when
// RecoveryTimeout has elapsed: the transition happens on the next attempt,
// not on a background timer.
func (r *BreakerRegistry) Allow(key string, cfg CircuitBreakerConfig, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(key)
	switch e.state {
	case Open:
		if now.Sub(e.openedAt) >= cfg.RecoveryTimeout {
			e.state = HalfOpen
			e.halfOpenSuccesses = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess updates breaker state after a successful execution under key.
func (r *BreakerRegistry) RecordSuccess(key string, cfg CircuitBreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(key)
	switch e.state {
	case HalfOpen:
		e.halfOpenSuccesses++
		if e.halfOpenSuccesses >= maxInt(cfg.SuccessThreshold, 1) {
			e.state = Closed
			e.failureTimestamps = nil
			e.halfOpenSuccesses = 0
		}
	case Closed:
		// A success doesn't clear the rolling failure window by itself;
		// only elapsed time does, via the prune in RecordFailure.
	}
}

// RecordFailure updates breaker state after a failed execution under key.
func (r *BreakerRegistry) RecordFailure(key string, cfg CircuitBreakerConfig, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(key)

	if e.state == HalfOpen {
		e.state = Open
		e.openedAt = now
		e.halfOpenSuccesses = 0
		return
	}

	e.failureTimestamps = append(e.failureTimestamps, now)
	e.failureTimestamps = pruneWindow(e.failureTimestamps, cfg.TimeWindow, now)

	if len(e.failureTimestamps) >= maxInt(cfg.FailureThreshold, 1) {
		e.state = Open
		e.openedAt = now
	}
}

func pruneWindow(ts []time.Time, window time.Duration, now time.Time) []time.Time {
	if window <= 0 {
		return ts
	}
	cutoff := now.Add(-window)
	out := ts[:0:0]
	for _, t := range ts {
		if t.After(cutoff) || t.Equal(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
