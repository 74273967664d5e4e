package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer, either as human-readable key=value lines or one JSON object per
// line. Mirrors langgraph-go's emit.LogEmitter.
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter writing to writer (os.Stdout if nil).
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.jsonMode {
		b, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Fprintln(l.writer, string(b))
		return
	}
	fmt.Fprintf(l.writer, "[%s] workflowID=%s nodeID=%s", event.Msg, event.WorkflowID, event.NodeID)
	if len(event.Meta) > 0 {
		b, _ := json.Marshal(event.Meta)
		fmt.Fprintf(l.writer, " meta=%s", b)
	}
	fmt.Fprintln(l.writer)
}

func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(_ context.Context) error { return nil }
