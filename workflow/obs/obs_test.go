package obs_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/flowcraft/dagflow-go/workflow/obs"
)

func TestBufferedEmitterRecordsPerWorkflowHistory(t *testing.T) {
	b := obs.NewBufferedEmitter()
	b.Emit(obs.Event{WorkflowID: "a", Msg: "node_start", Time: time.Now()})
	b.Emit(obs.Event{WorkflowID: "a", Msg: "node_complete", Time: time.Now()})
	b.Emit(obs.Event{WorkflowID: "b", Msg: "node_start", Time: time.Now()})

	if got := b.History("a"); len(got) != 2 {
		t.Fatalf("History(a) = %v, want 2 events", got)
	}
	if got := b.History("b"); len(got) != 1 {
		t.Fatalf("History(b) = %v, want 1 event", got)
	}
}

func TestBufferedEmitterHistoryReturnsACopy(t *testing.T) {
	b := obs.NewBufferedEmitter()
	b.Emit(obs.Event{WorkflowID: "a", Msg: "x"})

	h := b.History("a")
	h[0].Msg = "mutated"

	if got := b.History("a"); got[0].Msg != "x" {
		t.Errorf("mutating a returned History slice must not affect the emitter's stored events, got %q", got[0].Msg)
	}
}

func TestBufferedEmitterClearSingleAndAll(t *testing.T) {
	b := obs.NewBufferedEmitter()
	b.Emit(obs.Event{WorkflowID: "a", Msg: "x"})
	b.Emit(obs.Event{WorkflowID: "b", Msg: "y"})

	b.Clear("a")
	if len(b.History("a")) != 0 {
		t.Error("Clear(a) should remove a's history")
	}
	if len(b.History("b")) != 1 {
		t.Error("Clear(a) should not affect b's history")
	}

	b.Clear("")
	if len(b.History("b")) != 0 {
		t.Error("Clear(\"\") should remove every workflow's history")
	}
}

func TestFanoutBroadcastsToEveryEmitter(t *testing.T) {
	b1 := obs.NewBufferedEmitter()
	b2 := obs.NewBufferedEmitter()
	f := obs.NewFanout(b1, b2)

	f.Emit(obs.Event{WorkflowID: "a", Msg: "x"})
	if len(b1.History("a")) != 1 || len(b2.History("a")) != 1 {
		t.Error("Fanout.Emit should deliver to every attached emitter")
	}

	if err := f.EmitBatch(context.Background(), []obs.Event{{WorkflowID: "a", Msg: "y"}}); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	if len(b1.History("a")) != 2 || len(b2.History("a")) != 2 {
		t.Error("Fanout.EmitBatch should deliver to every attached emitter")
	}

	if err := f.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestLogEmitterHumanReadableIncludesMeta(t *testing.T) {
	var buf bytes.Buffer
	l := obs.NewLogEmitter(&buf, false)
	l.Emit(obs.Event{WorkflowID: "wf1", NodeID: "n1", Msg: "node_start", Meta: map[string]any{"reason": "x"}})

	out := buf.String()
	if !strings.Contains(out, "node_start") || !strings.Contains(out, "wf1") || !strings.Contains(out, "n1") {
		t.Errorf("log line = %q, missing expected fields", out)
	}
	if !strings.Contains(out, `"reason":"x"`) {
		t.Errorf("log line = %q, want it to include meta as JSON", out)
	}
}

func TestLogEmitterJSONMode(t *testing.T) {
	var buf bytes.Buffer
	l := obs.NewLogEmitter(&buf, true)
	l.Emit(obs.Event{WorkflowID: "wf1", Msg: "node_start"})

	out := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(out, "{") || !strings.HasSuffix(out, "}") {
		t.Errorf("jsonMode output = %q, want a single JSON object line", out)
	}
}

func TestNullEmitterDiscardsSilently(t *testing.T) {
	var n obs.NullEmitter
	n.Emit(obs.Event{Msg: "x"})
	if err := n.EmitBatch(context.Background(), []obs.Event{{Msg: "x"}}); err != nil {
		t.Errorf("EmitBatch: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestLoggerFiltersBelowThreshold(t *testing.T) {
	var got []string
	l := obs.NewLogger(obs.LevelWarn, func(message string, level obs.Level) {
		got = append(got, message)
	})

	l.Log("debug msg", obs.LevelDebug)
	l.Log("info msg", obs.LevelInfo)
	l.Log("warn msg", obs.LevelWarn)
	l.Log("error msg", obs.LevelError)

	if len(got) != 2 || got[0] != "warn msg" || got[1] != "error msg" {
		t.Errorf("delivered messages = %v, want only warn and error", got)
	}
}

func TestLoggerSwallowsCallbackPanic(t *testing.T) {
	l := obs.NewLogger(obs.LevelDebug, func(string, obs.Level) { panic("boom") })
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Logger.Log must swallow a callback panic, got: %v", r)
		}
	}()
	l.Log("x", obs.LevelDebug)
}

func TestLoggerNilIsANoOp(t *testing.T) {
	var l *obs.Logger
	l.Log("x", obs.LevelError) // must not panic on a nil receiver
}
