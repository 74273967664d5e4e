package obs

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, keyed by workflow id, for test
// assertions and post-run inspection. Mirrors langgraph-go's
// emit.BufferedEmitter.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.WorkflowID] = append(b.events[event.WorkflowID], event)
}

func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *BufferedEmitter) Flush(context.Context) error { return nil }

// History returns a copy of every event recorded for workflowID.
func (b *BufferedEmitter) History(workflowID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.events[workflowID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}

// Clear discards buffered events for workflowID, or every workflow if empty.
func (b *BufferedEmitter) Clear(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if workflowID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, workflowID)
}

// Fanout broadcasts every call to all of emitters. Used to attach both a
// LogEmitter and an OTelEmitter (or a BufferedEmitter for tests) at once.
type Fanout struct {
	emitters []Emitter
}

// NewFanout creates an Emitter that forwards to every emitter in order.
func NewFanout(emitters ...Emitter) *Fanout {
	return &Fanout{emitters: emitters}
}

func (f *Fanout) Emit(event Event) {
	for _, e := range f.emitters {
		e.Emit(event)
	}
}

func (f *Fanout) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, e := range f.emitters {
		if err := e.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *Fanout) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range f.emitters {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
