package obs

import "time"

// Event is one observability event emitted during workflow execution. The
// scheduler emits "node_start", "node_complete", and "node_<OUTCOME>" for
// each policy decision (node_RETRY, node_SKIP, node_FAIL, ...); it emits no
// round-boundary, breaker-transition, or alert events. Mirrors the shape of langgraph-go's emit.Event, scoped to
// workflow/node ids instead of a generic run id.
type Event struct {
	WorkflowID string
	NodeID     string
	Msg        string
	Time       time.Time
	Meta       map[string]any
}
