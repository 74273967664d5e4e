// Package eventbus implements the event-wait subsystem: emit, retained
// history, and hasEventOccurred queries used by the scheduler to resolve a
// node's waitForEvents. It defines its own Event type so the workflow
// package can depend on it without a cycle back through workflow.State.
package eventbus

import (
	"sync"
	"time"
)

// Event is one emitted occurrence, retained in a workflow's history.
type Event struct {
	ID        string
	Type      string
	Data      any
	NodeID    string
	Timestamp time.Time
}

// Matcher, if non-nil, further filters events of the matching Type passed
// to HasOccurred.
type Matcher func(Event) bool

// Listener is notified synchronously on Emit. A panicking listener must
// not prevent delivery to other listeners or propagate to the emitter.
type Listener func(Event)

// Bus is a per-workflow event bus: one Bus instance backs one running
// workflow's history and live listeners.
type Bus struct {
	mu        sync.Mutex
	history   []Event
	listeners []Listener
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Emit appends event to the retained history (ordered by emission, since
// Emit is the only writer) and synchronously notifies listeners, isolating
// the emitter from any listener panic.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	b.history = append(b.history, event)
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		notify(l, event)
	}
}

func notify(l Listener, event Event) {
	defer func() { _ = recover() }()
	l(event)
}

// Subscribe registers a listener for every future Emit call.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Seed restores a bus's history from previously persisted events, without
// notifying listeners. It is used to repopulate a fresh Bus for a workflow
// resumed in a new process, so history queries see what happened before
// the restart.
func (b *Bus) Seed(events []Event) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = append(b.history, events...)
}

// HasOccurred reports whether an event of the given type, matching an
// optional matcher, occurred at or after since (inclusive of since itself).
// A zero since means no lower bound.
func (b *Bus) HasOccurred(eventType string, matcher Matcher, since time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.history {
		if e.Type != eventType {
			continue
		}
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if matcher != nil && !matcher(e) {
			continue
		}
		return true
	}
	return false
}

// History returns a copy of every retained event, ordered by emission.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}
