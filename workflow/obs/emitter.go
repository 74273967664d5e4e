// Package obs provides pluggable observability for workflow execution:
// structured logging, in-memory buffering, and OpenTelemetry tracing,
// behind one Emitter interface so the scheduler never depends on a
// particular backend.
package obs

import "context"

// Emitter receives observability events from the scheduler. Implementations
// must not block scheduling and must not panic; Emit is called from the
// scheduler's hot path.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}
