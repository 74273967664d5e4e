package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowcraft/dagflow-go/workflow/eventbus"
	"github.com/flowcraft/dagflow-go/workflow/policy"
	"github.com/flowcraft/dagflow-go/workflow/store"
)

// ExecutionResult is the user-visible outcome of StartWorkflow/ResumeWorkflow.
type ExecutionResult struct {
	WorkflowID  string
	Status      WorkflowStatus
	Error       string
	Duration    time.Duration
	NodeResults map[string]any
	FailureMetrics map[string]*NodeMetrics

	// state is retained for internal callers (the subflow handler) that
	// need the full per-node detail beyond NodeResults; not part of the
	// public contract.
	state *State
}

// Executor is the single entry point that starts, resumes, and inspects
// workflow runs, enforcing that a given workflow id is never driven by
// two concurrent calls at once.
type Executor struct {
	store store.Store[State]
	opts  Options

	scheduler *Scheduler
	registry  *Registry

	mu      sync.Mutex
	running map[string]bool
	buses   map[string]*eventbus.Bus
}

// New creates an Executor backed by st, applying opts over the package
// defaults.
func New(st store.Store[State], opts ...Option) *Executor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Executor{
		store:   st,
		opts:    o,
		running: make(map[string]bool),
		buses:   make(map[string]*eventbus.Bus),
	}
	e.registry = NewRegistry(HandlerFunc(e.subflowHandler))
	e.scheduler = &Scheduler{
		Registry:       e.registry,
		Policy:         policy.NewEngine(nil),
		Emitter:        o.Emitter,
		Logger:         o.Logger,
		MaxConcurrent:  o.MaxConcurrent,
		DefaultTimeout: o.DefaultNodeTimeout,
	}
	return e
}

// Registry exposes the handler registry so callers can register plugin
// handlers before starting any workflow.
func (e *Executor) Registry() *Registry { return e.registry }

func (e *Executor) acquireRunning(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[id] {
		return &EngineError{Message: "workflow already running: " + id, Code: CodeValidation, Cause: ErrAlreadyRunning}
	}
	e.running[id] = true
	return nil
}

func (e *Executor) releaseRunning(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, id)
}

// busFor returns the live Bus for id, creating one on first access. A
// freshly created bus is seeded from whatever event history is already
// persisted for id, so a workflow resumed in a new process (after a
// restart) doesn't lose events emitted before the restart.
func (e *Executor) busFor(id string) *eventbus.Bus {
	e.mu.Lock()
	b, ok := e.buses[id]
	if ok {
		e.mu.Unlock()
		return b
	}
	b = eventbus.New()
	e.buses[id] = b
	e.mu.Unlock()

	if state, found, err := e.store.Load(context.Background(), id); err == nil && found {
		b.Seed(eventRecordsToBusEvents(state.Events))
	}
	return b
}

func (e *Executor) persist(ctx context.Context, state *State) error {
	return e.store.Save(ctx, state.ID, *state)
}

// StartWorkflow validates def, builds fresh state, and drives it through
// the scheduler until it suspends or terminates.
func (e *Executor) StartWorkflow(ctx context.Context, def *Def, initialContext map[string]any) (*ExecutionResult, error) {
	if err := validateDef(def); err != nil {
		return nil, err
	}
	if err := e.acquireRunning(def.ID); err != nil {
		return nil, err
	}
	defer e.releaseRunning(def.ID)

	state := &State{
		ID:      def.ID,
		Def:     *def,
		Status:  StatusRunning,
		Nodes:   make(map[string]*NodeState, len(def.Nodes)),
		Context: cloneContext(initialContext),
		StartedAt: time.Now(),
		FailureMetrics: make(map[string]*NodeMetrics),
	}
	for _, n := range def.Nodes {
		state.Nodes[n.ID] = &NodeState{Status: NodePending}
	}

	return e.run(ctx, state, e.busFor(def.ID))
}

// ResumeWorkflow reloads a persisted run and drives it through the
// scheduler again, e.g. after an event satisfies a waiting node.
func (e *Executor) ResumeWorkflow(ctx context.Context, id string) (*ExecutionResult, error) {
	persisted, found, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, &EngineError{Message: "failed to load workflow state", Code: CodeStorage, Cause: err}
	}
	if !found {
		return nil, ErrNotFound
	}
	if err := e.acquireRunning(id); err != nil {
		return nil, err
	}
	defer e.releaseRunning(id)

	state := persisted
	return e.run(ctx, &state, e.busFor(id))
}

// runDefinition is the recursive entry subflow nodes use: it builds a
// fresh state for def under childID (no stored-resume path; subflows are
// always driven start-to-terminal within their parent's call) and runs it
// under the same running-set discipline as a top-level start.
func (e *Executor) runDefinition(ctx context.Context, childID string, def *Def, childContext map[string]any) (*ExecutionResult, error) {
	childDef := *def
	childDef.ID = childID
	if err := validateDef(&childDef); err != nil {
		return nil, err
	}
	if err := e.acquireRunning(childID); err != nil {
		return nil, err
	}
	defer e.releaseRunning(childID)

	state := &State{
		ID:      childID,
		Def:     childDef,
		Status:  StatusRunning,
		Nodes:   make(map[string]*NodeState, len(childDef.Nodes)),
		Context: cloneContext(childContext),
		StartedAt: time.Now(),
		FailureMetrics: make(map[string]*NodeMetrics),
	}
	for _, n := range childDef.Nodes {
		state.Nodes[n.ID] = &NodeState{Status: NodePending}
	}

	return e.run(ctx, state, e.busFor(childID))
}

func (e *Executor) run(ctx context.Context, state *State, bus *eventbus.Bus) (*ExecutionResult, error) {
	if err := e.scheduler.Run(ctx, state, bus, e.persist); err != nil {
		return nil, err
	}
	return toResult(state), nil
}

func toResult(state *State) *ExecutionResult {
	duration := state.CompletedAt.Sub(state.StartedAt)
	if state.CompletedAt.IsZero() {
		duration = time.Since(state.StartedAt)
	}

	nodeResults := make(map[string]any, len(state.Nodes))
	for id, ns := range state.Nodes {
		nodeResults[id] = ns.Result
	}

	return &ExecutionResult{
		WorkflowID:     state.ID,
		Status:         state.Status,
		Error:          state.FailureReason,
		Duration:       duration,
		NodeResults:    nodeResults,
		FailureMetrics: state.FailureMetrics,
		state:          state,
	}
}

// EmitEvent delivers an event to a running (or suspended-WAITING)
// workflow's bus.
func (e *Executor) EmitEvent(workflowID, eventType string, data any, nodeID string) {
	e.busFor(workflowID).Emit(eventbus.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Data:      data,
		NodeID:    nodeID,
		Timestamp: time.Now(),
	})
}

// GetWorkflowState returns the persisted state for id.
func (e *Executor) GetWorkflowState(ctx context.Context, id string) (*State, bool, error) {
	state, found, err := e.store.Load(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	return &state, true, nil
}

// DeleteWorkflow removes a persisted run, rejecting deletion of a run
// currently being driven by a start/resume call.
func (e *Executor) DeleteWorkflow(ctx context.Context, id string) error {
	e.mu.Lock()
	running := e.running[id]
	e.mu.Unlock()
	if running {
		return &EngineError{Message: "cannot delete a running workflow: " + id, Code: CodeValidation}
	}
	return e.store.Delete(ctx, id)
}

// ListWorkflows returns every persisted workflow id.
func (e *Executor) ListWorkflows(ctx context.Context) ([]string, error) {
	return e.store.List(ctx)
}

func checkpointID(workflowID, label string) string {
	return workflowID + ".checkpoint." + label
}

// SaveCheckpoint snapshots a run's current persisted state under a named
// checkpoint id, reusing the Storage Adapter's save/load rather than a
// separate mechanism.
func (e *Executor) SaveCheckpoint(ctx context.Context, workflowID, label string) error {
	state, found, err := e.store.Load(ctx, workflowID)
	if err != nil {
		return &EngineError{Message: "failed to load workflow state", Code: CodeStorage, Cause: err}
	}
	if !found {
		return ErrNotFound
	}
	return e.store.Save(ctx, checkpointID(workflowID, label), state)
}

// NewRunFromCheckpoint clones a previously saved checkpoint into a fresh,
// independently resumable run under newWorkflowID, for branching
// re-execution from a named point.
func (e *Executor) NewRunFromCheckpoint(ctx context.Context, label, sourceWorkflowID, newWorkflowID string) (*State, error) {
	checkpoint, found, err := e.store.Load(ctx, checkpointID(sourceWorkflowID, label))
	if err != nil {
		return nil, &EngineError{Message: "failed to load checkpoint", Code: CodeStorage, Cause: err}
	}
	if !found {
		return nil, ErrNotFound
	}

	branched := checkpoint
	branched.ID = newWorkflowID
	branched.Def.ID = newWorkflowID
	branched.Nodes = make(map[string]*NodeState, len(checkpoint.Nodes))
	for id, ns := range checkpoint.Nodes {
		copied := *ns
		branched.Nodes[id] = &copied
	}
	branched.Context = cloneContext(checkpoint.Context)

	if err := e.store.Save(ctx, newWorkflowID, branched); err != nil {
		return nil, &EngineError{Message: "failed to persist branched run", Code: CodeStorage, Cause: err}
	}
	return &branched, nil
}
