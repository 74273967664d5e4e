package policy

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one dead-lettered node, retained for out-of-band reprocessing
// (GLOSSARY "Dead Letter Queue").
type Entry struct {
	ID         string
	WorkflowID string
	NodeID     string
	Error      string
	Attempts   int
	DeadAt     time.Time
	RetainUntil time.Time
}

// DLQ is an in-process dead-letter queue. Bundled storage adapters persist
// workflow state, not the DLQ itself — the DLQ is runtime-local bookkeeping
// that a caller drains via Entries and a configured Handler callback.
type DLQ struct {
	mu      sync.Mutex
	entries []Entry
}

// NewDLQ creates an empty dead-letter queue.
func NewDLQ() *DLQ {
	return &DLQ{}
}

// Push admits a terminally-failed node to the queue and invokes cfg.Handler,
// if set, outside the lock so a slow or panicking handler cannot block other
// workflows; a DLQ handler exception must never affect scheduling.
func (q *DLQ) Push(workflowID, nodeID, errMsg string, attempts int, cfg *DeadLetterConfig) Entry {
	now := time.Now()
	e := Entry{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Error:      errMsg,
		Attempts:   attempts,
		DeadAt:     now,
	}
	if cfg != nil && cfg.RetentionPeriod > 0 {
		e.RetainUntil = now.Add(cfg.RetentionPeriod)
	}

	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()

	if cfg != nil && cfg.Handler != nil {
		safeCall(func() { cfg.Handler(e) })
	}
	return e
}

// Len returns the current queue size, used by the DLQ_THRESHOLD alert.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a snapshot of every retained entry.
func (q *DLQ) Entries() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// safeCall invokes f and discards any panic, so a user-supplied
// alert/DLQ/log handler can never affect scheduling.
func safeCall(f func()) {
	defer func() { _ = recover() }()
	f()
}
