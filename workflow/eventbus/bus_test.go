package eventbus_test

import (
	"testing"
	"time"

	"github.com/flowcraft/dagflow-go/workflow/eventbus"
)

func TestHasOccurredIsInclusiveOfSince(t *testing.T) {
	bus := eventbus.New()
	since := time.Now()
	bus.Emit(eventbus.Event{Type: "approval", Timestamp: since})

	if !bus.HasOccurred("approval", nil, since) {
		t.Error("HasOccurred should treat since as inclusive")
	}
	if bus.HasOccurred("approval", nil, since.Add(time.Millisecond)) {
		t.Error("an event before the since bound must not count")
	}
}

func TestHasOccurredFiltersByType(t *testing.T) {
	bus := eventbus.New()
	bus.Emit(eventbus.Event{Type: "rejection", Timestamp: time.Now()})

	if bus.HasOccurred("approval", nil, time.Time{}) {
		t.Error("an event of a different type must not satisfy the query")
	}
}

func TestListenerPanicDoesNotPreventOtherListenersOrPropagate(t *testing.T) {
	bus := eventbus.New()
	var delivered bool

	bus.Subscribe(func(eventbus.Event) { panic("boom") })
	bus.Subscribe(func(eventbus.Event) { delivered = true })

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("a listener panic must not propagate out of Emit, got: %v", r)
		}
	}()
	bus.Emit(eventbus.Event{Type: "x", Timestamp: time.Now()})

	if !delivered {
		t.Error("the second listener should still be notified despite the first panicking")
	}
}

func TestHistoryReturnsEventsInEmissionOrder(t *testing.T) {
	bus := eventbus.New()
	bus.Emit(eventbus.Event{Type: "a"})
	bus.Emit(eventbus.Event{Type: "b"})
	bus.Emit(eventbus.Event{Type: "c"})

	history := bus.History()
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	want := []string{"a", "b", "c"}
	for i, e := range history {
		if e.Type != want[i] {
			t.Errorf("history[%d].Type = %s, want %s", i, e.Type, want[i])
		}
	}
}
