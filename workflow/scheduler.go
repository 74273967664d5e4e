package workflow

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/flowcraft/dagflow-go/workflow/eventbus"
	"github.com/flowcraft/dagflow-go/workflow/obs"
	"github.com/flowcraft/dagflow-go/workflow/policy"
)

// Scheduler drives a workflow through rounds: compute the ready set,
// dispatch it concurrently, persist, repeat until the workflow reaches
// WAITING or a terminal status.
type Scheduler struct {
	Registry       *Registry
	Policy         *policy.Engine
	Emitter        obs.Emitter
	Logger         *obs.Logger
	MaxConcurrent  int
	DefaultTimeout time.Duration
}

// Persist is called after every round so a crash never loses more than
// one round's progress.
type Persist func(ctx context.Context, state *State) error

// Run drives state through rounds until it reaches WAITING, COMPLETED, or
// FAILED, persisting after each round.
func (s *Scheduler) Run(ctx context.Context, state *State, bus *eventbus.Bus, persist Persist) error {
	rng := initRNG(state.ID)

	for {
		readySet, anyWaiting := s.computeReadySet(state, bus)

		if len(readySet) == 0 {
			// A PENDING node still inside its retry delay is a suspension
			// point within this call: sleep until the earliest one is due,
			// then re-evaluate, rather than returning WAITING.
			var nextRetry time.Time
			for _, ds := range state.Nodes {
				if ds.Status == NodePending && !ds.NextAttemptNotBefore.IsZero() &&
					(nextRetry.IsZero() || ds.NextAttemptNotBefore.Before(nextRetry)) {
					nextRetry = ds.NextAttemptNotBefore
				}
			}
			if !nextRetry.IsZero() && ctx.Err() == nil {
				timer := time.NewTimer(time.Until(nextRetry))
				select {
				case <-timer.C:
					continue
				case <-ctx.Done():
					timer.Stop()
				}
			}
			switch {
			case anyWaiting:
				state.Status = StatusWaiting
			case allTerminalSuccess(state):
				state.Status = StatusCompleted
				state.CompletedAt = time.Now()
			default:
				state.Status = StatusFailed
				state.FailureReason = "execution stalled"
			}
			state.Events = busEventsToEventRecords(bus.History())
			return persist(ctx, state)
		}

		s.dispatchRound(ctx, state, bus, rng, readySet)

		state.Events = busEventsToEventRecords(bus.History())
		if err := persist(ctx, state); err != nil {
			return &EngineError{Message: "failed to persist workflow state", Code: CodeStorage, Cause: err}
		}

		if state.Status == StatusFailed {
			return nil
		}
	}
}

// computeReadySet evaluates every PENDING/WAITING node against the current
// state and bus, returning the nodes ready to dispatch this round and
// whether any node remains (or newly became) WAITING or is PENDING inside
// its retry delay.
func (s *Scheduler) computeReadySet(state *State, bus *eventbus.Bus) ([]NodeDef, bool) {
	now := time.Now()
	var readyNodes []NodeDef
	anyWaiting := false

	for _, node := range state.Def.Nodes {
		ds := state.Nodes[node.ID]
		if ds == nil {
			continue
		}

		switch ds.Status {
		case NodeWaiting:
			if eventsSatisfied(bus, node, ds.StartedAt) {
				readyNodes = append(readyNodes, node)
			} else {
				anyWaiting = true
			}
			continue
		case NodePending:
			// fall through to full readiness evaluation below
		default:
			continue
		}

		if !ds.NextAttemptNotBefore.IsZero() && now.Before(ds.NextAttemptNotBefore) {
			anyWaiting = true
			continue
		}

		switch evaluateReadiness(state, node) {
		case notReady:
			continue
		case mustSkip:
			ds.Status = NodeSkipped
			ds.CompletedAt = now
			continue
		}

		if len(node.WaitForEvents) > 0 {
			if ds.StartedAt.IsZero() {
				ds.StartedAt = now
			}
			if !eventsSatisfied(bus, node, ds.StartedAt) {
				ds.Status = NodeWaiting
				ds.WaitingForEvents = node.WaitForEvents
				anyWaiting = true
				continue
			}
		}

		readyNodes = append(readyNodes, node)
	}

	return readyNodes, anyWaiting
}

func allTerminalSuccess(state *State) bool {
	for _, ds := range state.Nodes {
		if ds.Status != NodeCompleted && ds.Status != NodeSkipped && ds.Status != NodeDeadLettered {
			return false
		}
	}
	return true
}

// dispatchRound runs every node in readyNodes concurrently (bounded by
// MaxConcurrent, if set) and awaits them all before returning. A node
// failure that fails the workflow cancels the round so nodes not yet
// started are abandoned rather than started after the outcome is decided.
func (s *Scheduler) dispatchRound(ctx context.Context, state *State, bus *eventbus.Bus, rng *rand.Rand, readyNodes []NodeDef) {
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sem chan struct{}
	if s.MaxConcurrent > 0 {
		sem = make(chan struct{}, s.MaxConcurrent)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex // guards state.Context and state.Status writes below

	for _, node := range readyNodes {
		if roundCtx.Err() != nil {
			break // FAIL_FAST already fired; abandon remaining unstarted nodes
		}

		node := node
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			if roundCtx.Err() != nil {
				return
			}

			s.executeNode(roundCtx, state, bus, rng, node, &mu)

			mu.Lock()
			failFast := state.Status == StatusFailed
			mu.Unlock()
			if failFast {
				cancel()
			}
		}()
	}

	wg.Wait()
}

// executeNode runs one ready node's handler (or circuit-breaker refusal)
// and applies the resulting decision to its NodeState.
func (s *Scheduler) executeNode(ctx context.Context, state *State, bus *eventbus.Bus, rng *rand.Rand, node NodeDef, mu *sync.Mutex) {
	now := time.Now()

	mu.Lock()
	ds := state.Nodes[node.ID]
	ds.Status = NodeRunning
	ds.Attempts++
	if ds.StartedAt.IsZero() {
		ds.StartedAt = now
	}
	cfg := s.resolveConfig(node)
	snapshot := cloneContext(state.Context)
	snapshot["__workflow_id"] = state.ID
	if isMergeType(node.Type) {
		snapshot["dependencyResults"] = buildDependencyResults(state, node)
	}
	mu.Unlock()

	s.Policy.Metrics.RecordAttempt(state.ID, node.ID)
	s.Emitter.Emit(obs.Event{WorkflowID: state.ID, NodeID: node.ID, Msg: "node_start", Time: now})

	if cfg.Strategy == policy.CircuitBreaker && cfg.CircuitBreaker != nil && !s.Policy.Allow(state.ID, node.ID, cfg, now) {
		decision := s.Policy.DecideRefused(state.ID, node.ID, cfg, ds.Attempts, rng)
		mu.Lock()
		s.applyDecision(state, node, ds, decision, &NodeError{Message: "circuit open", Code: CodeCircuitOpen, NodeID: node.ID, Attempt: ds.Attempts})
		s.syncFailureMetrics(state, node.ID)
		mu.Unlock()
		return
	}

	handler, ok := s.Registry.Resolve(node.Type)
	if !ok {
		mu.Lock()
		ds.Status = NodeFailed
		ds.Error = "unknown node type: " + node.Type
		ds.CompletedAt = time.Now()
		if cfg.Strategy == policy.FailFast {
			state.Status = StatusFailed
			state.FailureReason = ds.Error
		}
		mu.Unlock()
		return
	}

	timeout := resolveTimeout(node, s.DefaultTimeout)
	result, err := runHandlerWithTimeout(ctx, handler, node, snapshot, node.Inputs, timeout)

	mu.Lock()
	defer mu.Unlock()

	if err == nil {
		ds.Status = NodeCompleted
		ds.Result = result
		ds.CompletedAt = time.Now()
		ds.Error = ""
		s.Policy.RecordSuccess(state.ID, node.ID, cfg)
		s.syncFailureMetrics(state, node.ID)
		s.Emitter.Emit(obs.Event{WorkflowID: state.ID, NodeID: node.ID, Msg: "node_complete", Time: ds.CompletedAt})
		return
	}

	decision := s.Policy.Decide(state.ID, node.ID, cfg, ds.Attempts, err, time.Now(), rng)
	s.applyDecision(state, node, ds, decision, err)
	s.syncFailureMetrics(state, node.ID)
}

// syncFailureMetrics copies the policy engine's rolling counters for nodeID
// into state.FailureMetrics, so they persist and survive a restart
// alongside the rest of the run. Caller must hold mu.
func (s *Scheduler) syncFailureMetrics(state *State, nodeID string) {
	attempts, failures, successes, inWindow := s.Policy.Metrics.Snapshot(state.ID, nodeID)
	if state.FailureMetrics == nil {
		state.FailureMetrics = make(map[string]*NodeMetrics)
	}
	state.FailureMetrics[nodeID] = &NodeMetrics{
		TotalAttempts:    attempts,
		TotalFailures:    failures,
		TotalSuccesses:   successes,
		FailuresInWindow: inWindow,
	}
}

// applyDecision folds a policy.Decision into a node's state (and, for
// FAIL_FAST, the whole workflow's).
func (s *Scheduler) applyDecision(state *State, node NodeDef, ds *NodeState, decision policy.Decision, cause error) {
	now := time.Now()
	switch decision.Outcome {
	case policy.OutcomeRetry:
		ds.Status = NodePending
		ds.NextAttemptNotBefore = now.Add(decision.Delay)
		ds.Error = cause.Error()
	case policy.OutcomeSkip:
		ds.Status = NodeSkipped
		ds.CompletedAt = now
		ds.Error = cause.Error()
	case policy.OutcomeDeadLetter:
		ds.Status = NodeDeadLettered
		ds.CompletedAt = now
		ds.Error = cause.Error()
	case policy.OutcomeFallback:
		ds.Status = NodeCompleted
		ds.Result = decision.FallbackResult
		ds.CompletedAt = now
		ds.Error = ""
	default: // OutcomeFail
		ds.Status = NodeFailed
		ds.CompletedAt = now
		ds.Error = cause.Error()
		// OutcomeFail means the policy engine has given up on this node,
		// whether that's FAIL_FAST on the first error or RETRY_AND_FAIL
		// after retries exhaust. Either way the workflow fails now rather
		// than waiting for the scheduler to notice a stalled round.
		state.Status = StatusFailed
		state.FailureReason = cause.Error()
	}

	s.Emitter.Emit(obs.Event{
		WorkflowID: state.ID,
		NodeID:     node.ID,
		Msg:        "node_" + string(decision.Outcome),
		Time:       now,
		Meta:       map[string]any{"reason": decision.Reason},
	})
}

// resolveConfig collapses the node-override > engine-default precedence
// chain to one policy.Config, attaching the node's retry schedule.
func (s *Scheduler) resolveConfig(node NodeDef) policy.Config {
	cfg := policy.DefaultConfig()
	if node.FailureHandling != nil {
		cfg = *node.FailureHandling
	}
	cfg.Retry = node.RetryConfig
	return cfg
}
