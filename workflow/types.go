// Package workflow implements the execution core of a stateful DAG workflow
// engine: a scheduler that drives typed nodes from pending to terminal
// states, persists progress between rounds, and suspends execution on
// external events.
package workflow

import (
	"time"

	"github.com/flowcraft/dagflow-go/workflow/eventbus"
	"github.com/flowcraft/dagflow-go/workflow/policy"
)

// NodeStatus is the lifecycle state of a single node within a run.
type NodeStatus string

// Node lifecycle states. A node moves strictly forward through this set;
// PENDING is the only state a node may re-enter (for scheduled retries).
const (
	NodePending      NodeStatus = "PENDING"
	NodeRunning      NodeStatus = "RUNNING"
	NodeWaiting      NodeStatus = "WAITING"
	NodeCompleted    NodeStatus = "COMPLETED"
	NodeFailed       NodeStatus = "FAILED"
	NodeSkipped      NodeStatus = "SKIPPED"
	NodeDeadLettered NodeStatus = "DEAD_LETTERED"
)

// terminal reports whether a NodeStatus cannot transition further within a
// single scheduler round (it may still re-enter PENDING for a retry).
func (s NodeStatus) terminal() bool {
	switch s {
	case NodeCompleted, NodeFailed, NodeSkipped, NodeDeadLettered:
		return true
	default:
		return false
	}
}

// WorkflowStatus is the lifecycle state of an entire run.
type WorkflowStatus string

const (
	StatusRunning   WorkflowStatus = "RUNNING"
	StatusWaiting   WorkflowStatus = "WAITING"
	StatusCompleted WorkflowStatus = "COMPLETED"
	StatusFailed    WorkflowStatus = "FAILED"
	StatusSkipped   WorkflowStatus = "SKIPPED"
)

// Def is an immutable workflow definition: the graph of nodes a run is
// constructed from. Once a run has started, the Def embedded in its State
// must not be mutated.
type Def struct {
	ID       string
	Version  string
	Name     string
	Nodes    []NodeDef
	Metadata map[string]any
}

// NodeByID returns the node definition with the given id, or false if none
// exists.
func (d *Def) NodeByID(id string) (NodeDef, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDef{}, false
}

// NodeDef describes one node of a workflow graph: its handler type, static
// inputs, dependency edges, and optional per-node overrides.
type NodeDef struct {
	ID   string
	Type string

	Inputs       map[string]any
	Dependencies []string

	// WaitForEvents names events that must have occurred at or after this
	// node's first entry to WAITING before it may proceed.
	WaitForEvents []string

	RetryConfig     *policy.RetryConfig
	Timeout         time.Duration
	FailureHandling *policy.Config

	// Subflow fields. SubflowDefinition, if set, takes precedence over a
	// SubflowID lookup in the subflow registry.
	SubflowID         string
	SubflowDefinition *Def
	SubflowContext    map[string]any
	SubflowMaxDepth   int
}

// State is the mutable, persisted record of a single workflow run.
type State struct {
	ID  string
	Def Def

	Status WorkflowStatus
	Nodes  map[string]*NodeState
	// Context is the shared, read-write map visible to every node handler.
	Context map[string]any
	Events  []EventRecord

	StartedAt   time.Time
	CompletedAt time.Time

	FailureMetrics map[string]*NodeMetrics

	// FailureReason records why a FAILED workflow failed, independent of any
	// single node's error (e.g. "execution stalled").
	FailureReason string
}

// NodeState is the mutable, persisted record of a single node's progress
// within a run.
type NodeState struct {
	Status  NodeStatus
	Attempts int

	StartedAt   time.Time
	CompletedAt time.Time

	Result any
	Error  string

	WaitingForEvents []string

	// NextAttemptNotBefore holds the earliest time a scheduled retry may run.
	NextAttemptNotBefore time.Time
}

// EventRecord is one entry in a workflow's retained event history.
type EventRecord struct {
	ID        string
	Type      string
	Payload   any
	Timestamp time.Time
	NodeID    string
}

// NodeMetrics accumulates per-node failure-policy counters, persisted
// alongside the run as a record. Nothing reads them back into the policy
// engine: circuit-breaker state lives only in the process's memory and
// starts CLOSED after a restart, while retry exhaustion is decided from the
// persisted NodeState.Attempts.
type NodeMetrics struct {
	TotalAttempts   int
	TotalFailures   int
	TotalSuccesses  int
	FailuresInWindow int
}

// cloneContext returns a shallow copy of a context map — sufficient because
// the scheduler treats values as immutable once written.
func cloneContext(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// mergeContext composes layered context maps left-to-right; later maps win
// on key collision. Used to build handler inputs and subflow child context.
func mergeContext(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// eventRecordsToBusEvents converts a run's persisted event history back
// into the eventbus package's wire type, for seeding a freshly created Bus.
func eventRecordsToBusEvents(records []EventRecord) []eventbus.Event {
	out := make([]eventbus.Event, len(records))
	for i, r := range records {
		out[i] = eventbus.Event{
			ID:        r.ID,
			Type:      r.Type,
			Data:      r.Payload,
			NodeID:    r.NodeID,
			Timestamp: r.Timestamp,
		}
	}
	return out
}

// busEventsToEventRecords converts a Bus's full history into the persisted
// EventRecord form stored on State.Events.
func busEventsToEventRecords(events []eventbus.Event) []EventRecord {
	out := make([]EventRecord, len(events))
	for i, e := range events {
		out[i] = EventRecord{
			ID:        e.ID,
			Type:      e.Type,
			Payload:   e.Data,
			Timestamp: e.Timestamp,
			NodeID:    e.NodeID,
		}
	}
	return out
}
