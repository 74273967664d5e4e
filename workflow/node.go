package workflow

import (
	"strings"
	"time"

	"github.com/flowcraft/dagflow-go/workflow/eventbus"
	"github.com/flowcraft/dagflow-go/workflow/policy"
)

// mergeTypePrefix identifies node types belonging to the merge handler
// family: plugins/handlers' merge_all, merge_any, merge_majority,
// merge_count. These consume every dependency's result regardless of
// success/failure instead of requiring all-COMPLETED.
const mergeTypePrefix = "merge_"

func isMergeType(nodeType string) bool {
	return strings.HasPrefix(nodeType, mergeTypePrefix)
}

// depOutcome is what dependencyResults reports for one dependency, so a
// merge handler can implement ALL/ANY/MAJORITY/COUNT itself. It is
// flattened to a plain map[string]any (rather than handed out as this
// struct) so that handler plugins living outside this package — which
// cannot type-assert an unexported type — can read it the same way they
// read any other JSON-shaped context value.
type depOutcome struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (d depOutcome) toMap() map[string]any {
	m := map[string]any{"status": d.Status}
	if d.Result != nil {
		m["result"] = d.Result
	}
	if d.Error != "" {
		m["error"] = d.Error
	}
	return m
}

// readiness is the outcome of evaluating one node against the current
// state: either it may run, it must be skipped without running, or
// neither yet (its dependencies aren't all resolved).
type readiness int

const (
	notReady readiness = iota
	ready
	mustSkip
)

// evaluateReadiness applies the dependency-readiness clause, including
// SKIPPED propagation and the merge-handler family's relaxed rule.
func evaluateReadiness(state *State, node NodeDef) readiness {
	if isMergeType(node.Type) {
		for _, dep := range node.Dependencies {
			ds, ok := state.Nodes[dep]
			if !ok || !ds.Status.terminal() {
				return notReady
			}
		}
		return ready
	}

	allowSkippedDep := node.FailureHandling != nil &&
		node.FailureHandling.Strategy == policy.GracefulDegradation &&
		node.FailureHandling.GracefulDegradationConfig != nil &&
		node.FailureHandling.GracefulDegradationConfig.ContinueOnNodeFailure

	for _, dep := range node.Dependencies {
		ds, ok := state.Nodes[dep]
		if !ok || !ds.Status.terminal() {
			return notReady
		}
		switch ds.Status {
		case NodeCompleted:
			// satisfied
		case NodeSkipped:
			if !allowSkippedDep {
				return mustSkip
			}
		default: // FAILED, DEAD_LETTERED
			return mustSkip
		}
	}
	return ready
}

// buildDependencyResults composes the context.dependencyResults map a
// merge-family handler consumes: dependency id -> {status, result, error}.
func buildDependencyResults(state *State, node NodeDef) map[string]any {
	out := make(map[string]any, len(node.Dependencies))
	for _, dep := range node.Dependencies {
		ds, ok := state.Nodes[dep]
		if !ok {
			continue
		}
		out[dep] = depOutcome{Status: string(ds.Status), Result: ds.Result, Error: ds.Error}.toMap()
	}
	return out
}

// eventsSatisfied reports whether every event node.WaitForEvents names has
// occurred at or after since (inclusive), per the bus's retained history.
func eventsSatisfied(bus *eventbus.Bus, node NodeDef, since time.Time) bool {
	for _, evtType := range node.WaitForEvents {
		if !bus.HasOccurred(evtType, nil, since) {
			return false
		}
	}
	return true
}
