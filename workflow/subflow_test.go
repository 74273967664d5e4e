package workflow_test

import (
	"context"
	"testing"

	"github.com/flowcraft/dagflow-go/workflow"
	"github.com/flowcraft/dagflow-go/workflow/store"
)

func childDef(id string) *workflow.Def {
	return &workflow.Def{
		ID: id,
		Nodes: []workflow.NodeDef{
			{ID: "leaf", Type: workflow.TypeData, Inputs: map[string]any{"ran": id}},
		},
	}
}

func TestSubflowRunsInlineDefinitionAndReportsResult(t *testing.T) {
	parent := &workflow.Def{
		ID: "parent",
		Nodes: []workflow.NodeDef{
			{
				ID:                "child",
				Type:              workflow.TypeSubflow,
				SubflowDefinition: childDef("inline-child"),
			},
		},
	}

	exec := workflow.New(store.NewMemStore[workflow.State]())
	result, err := exec.StartWorkflow(context.Background(), parent, nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if result.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Status)
	}
}

func TestSubflowResolvesRegisteredSubflowID(t *testing.T) {
	parent := &workflow.Def{
		ID: "parent",
		Nodes: []workflow.NodeDef{
			{ID: "child", Type: workflow.TypeSubflow, SubflowID: "registered-child"},
		},
	}

	exec := workflow.New(
		store.NewMemStore[workflow.State](),
		workflow.WithSubflowRegistry(map[string]*workflow.Def{
			"registered-child": childDef("registered-child"),
		}),
	)
	result, err := exec.StartWorkflow(context.Background(), parent, nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if result.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Status)
	}
}

func TestSubflowUnknownSubflowIDFails(t *testing.T) {
	parent := &workflow.Def{
		ID: "parent",
		Nodes: []workflow.NodeDef{
			{ID: "child", Type: workflow.TypeSubflow, SubflowID: "nope"},
		},
	}

	exec := workflow.New(store.NewMemStore[workflow.State]())
	result, err := exec.StartWorkflow(context.Background(), parent, nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if result.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want FAILED for an unresolvable subflowId", result.Status)
	}
}

func TestSubflowExceedingMaxDepthFails(t *testing.T) {
	selfReferencing := &workflow.Def{
		ID: "recurse",
		Nodes: []workflow.NodeDef{
			{
				ID:              "again",
				Type:            workflow.TypeSubflow,
				SubflowID:       "recurse",
				SubflowMaxDepth: 1,
			},
		},
	}

	exec := workflow.New(
		store.NewMemStore[workflow.State](),
		workflow.WithSubflowRegistry(map[string]*workflow.Def{"recurse": selfReferencing}),
	)
	result, err := exec.StartWorkflow(context.Background(), selfReferencing, nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if result.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want FAILED once the subflow call stack exceeds its max depth", result.Status)
	}
}
