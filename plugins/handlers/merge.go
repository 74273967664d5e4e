package handlers

import (
	"context"
	"fmt"

	"github.com/flowcraft/dagflow-go/workflow"
)

// The merge_* handlers implement custom completion semantics: they are
// dispatched once every dependency is terminal (not necessarily
// COMPLETED) and read wfContext["dependencyResults"], a map of dependency
// node id to {"status", "result", "error"}, to decide success or failure
// themselves rather than leaving that to the scheduler's ordinary
// all-COMPLETED readiness rule.

func dependencyResults(wfContext map[string]any) map[string]map[string]any {
	raw, _ := wfContext["dependencyResults"].(map[string]any)
	out := make(map[string]map[string]any, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]any); ok {
			out[k] = m
		}
	}
	return out
}

func completedResults(deps map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(deps))
	for id, d := range deps {
		if d["status"] == "COMPLETED" {
			out[id] = d["result"]
		}
	}
	return out
}

// MergeAll registers as node type "merge_all": succeeds only if every
// dependency completed, returning their results keyed by dependency id.
type MergeAll struct{}

func (MergeAll) Execute(_ context.Context, _ workflow.NodeDef, wfContext, _ map[string]any) (any, error) {
	deps := dependencyResults(wfContext)
	completed := completedResults(deps)
	if len(completed) != len(deps) {
		return nil, fmt.Errorf("merge_all: %d of %d dependencies completed", len(completed), len(deps))
	}
	return completed, nil
}

// MergeAny registers as node type "merge_any": succeeds if at least one
// dependency completed.
type MergeAny struct{}

func (MergeAny) Execute(_ context.Context, _ workflow.NodeDef, wfContext, _ map[string]any) (any, error) {
	deps := dependencyResults(wfContext)
	completed := completedResults(deps)
	if len(completed) == 0 {
		return nil, fmt.Errorf("merge_any: no dependency completed (%d total)", len(deps))
	}
	return completed, nil
}

// MergeMajority registers as node type "merge_majority": succeeds if more
// than half of dependencies completed.
type MergeMajority struct{}

func (MergeMajority) Execute(_ context.Context, _ workflow.NodeDef, wfContext, _ map[string]any) (any, error) {
	deps := dependencyResults(wfContext)
	completed := completedResults(deps)
	if len(deps) == 0 || len(completed)*2 <= len(deps) {
		return nil, fmt.Errorf("merge_majority: %d of %d dependencies completed, majority required", len(completed), len(deps))
	}
	return completed, nil
}

// MergeCount registers as node type "merge_count": succeeds if at least
// inputs["minCount"] dependencies completed.
type MergeCount struct{}

func (MergeCount) Execute(_ context.Context, _ workflow.NodeDef, wfContext, inputs map[string]any) (any, error) {
	min, _ := toFloat(inputs["minCount"])
	deps := dependencyResults(wfContext)
	completed := completedResults(deps)
	if float64(len(completed)) < min {
		return nil, fmt.Errorf("merge_count: %d of %d dependencies completed, need at least %v", len(completed), len(deps), min)
	}
	return completed, nil
}
