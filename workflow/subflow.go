package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// subflowExecutionContextKey is the reserved context key carrying call-stack
// bookkeeping between a parent workflow and its subflow nodes.
const subflowExecutionContextKey = "__subflow_execution_context"

// subflowExecutionContext tracks the chain of subflow ids already entered,
// to enforce the depth and cycle invariants.
type subflowExecutionContext struct {
	CallStack []string `json:"callStack"`
	MaxDepth  int      `json:"maxDepth"`
}

func readSubflowExecutionContext(wfContext map[string]any, defaultMaxDepth int) subflowExecutionContext {
	raw, ok := wfContext[subflowExecutionContextKey]
	if !ok {
		return subflowExecutionContext{MaxDepth: defaultMaxDepth}
	}
	sec, ok := raw.(subflowExecutionContext)
	if !ok {
		return subflowExecutionContext{MaxDepth: defaultMaxDepth}
	}
	return sec
}

func contains(stack []string, id string) bool {
	for _, s := range stack {
		if s == id {
			return true
		}
	}
	return false
}

// subflowResult is the summary a subflow node completes with on success.
type subflowResult struct {
	ChildID        string         `json:"childId"`
	Status         WorkflowStatus `json:"status"`
	Duration       time.Duration  `json:"duration"`
	NodeResults    map[string]any `json:"nodeResults"`
	CompletedNodes int            `json:"completedNodes"`
	FailureCount   int            `json:"failureCount"`
}

// subflowHandler implements the built-in "subflow" node type. It is bound
// as a method value so it can recurse into e.runDefinition without
// the Registry needing to know about Executor.
func (e *Executor) subflowHandler(ctx context.Context, node NodeDef, wfContext map[string]any, inputs map[string]any) (any, error) {
	def := node.SubflowDefinition
	if def == nil {
		registered, ok := e.opts.SubflowRegistry[node.SubflowID]
		if !ok {
			return nil, fmt.Errorf("subflow: unknown subflowId %q", node.SubflowID)
		}
		def = registered
	}

	maxDepth := node.SubflowMaxDepth
	if maxDepth <= 0 {
		maxDepth = e.opts.DefaultSubflowMaxDepth
	}
	if maxDepth <= 0 {
		maxDepth = defaultOptions().DefaultSubflowMaxDepth
	}

	sec := readSubflowExecutionContext(wfContext, maxDepth)
	if len(sec.CallStack) >= maxDepth {
		return nil, &EngineError{
			Message: fmt.Sprintf("maximum subflow depth exceeded: %v", sec.CallStack),
			Code:    CodeDepth,
		}
	}
	if contains(sec.CallStack, def.ID) {
		return nil, &EngineError{
			Message: fmt.Sprintf("circular subflow reference: %v -> %s", sec.CallStack, def.ID),
			Code:    CodeCycle,
		}
	}

	childID := fmt.Sprintf("%s.%s.%s.%d.%s", parentWorkflowID(wfContext), node.ID, def.ID, time.Now().UnixMilli(), uuid.NewString()[:6])

	updatedSEC := subflowExecutionContext{
		CallStack: append(append([]string{}, sec.CallStack...), def.ID),
		MaxDepth:  maxDepth,
	}

	childContext := mergeContext(
		wfContext,
		node.Inputs,
		inputs,
		node.SubflowContext,
		map[string]any{subflowExecutionContextKey: updatedSEC},
	)

	result, err := e.runDefinition(ctx, childID, def, childContext)
	if err != nil {
		return nil, err
	}
	if result.Status == StatusFailed {
		return nil, fmt.Errorf("subflow %s failed: %s", childID, result.Error)
	}

	completed, failed := 0, 0
	for _, ns := range result.state.Nodes {
		switch ns.Status {
		case NodeCompleted:
			completed++
		case NodeFailed, NodeDeadLettered:
			failed++
		}
	}

	return subflowResult{
		ChildID:        childID,
		Status:         result.Status,
		Duration:       result.Duration,
		NodeResults:    result.NodeResults,
		CompletedNodes: completed,
		FailureCount:   failed,
	}, nil
}

// parentWorkflowID recovers the enclosing workflow id from a node's
// context snapshot so nested subflows derive ids rooted at the top-level
// run rather than the immediate parent alone losing that lineage.
func parentWorkflowID(wfContext map[string]any) string {
	if v, ok := wfContext["__workflow_id"].(string); ok {
		return v
	}
	return "workflow"
}
