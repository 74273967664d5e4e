package obs

import "context"

// NullEmitter discards every event. Used when no observability backend is
// configured, so the scheduler can always emit unconditionally.
type NullEmitter struct{}

func (NullEmitter) Emit(Event)                              {}
func (NullEmitter) EmitBatch(context.Context, []Event) error { return nil }
func (NullEmitter) Flush(context.Context) error              { return nil }
