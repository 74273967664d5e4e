package workflow

import "sync"

// Registry implements the handler registry: register a handler under a
// node type, resolve a type back to its handler. Reserved
// built-in types (TypeData, TypeDelay, TypeSubflow) always resolve to the
// Registry's own built-ins and may not be overridden.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a Registry with the built-in data/delay/subflow
// handlers pre-registered. subflowRunner is invoked by the built-in
// subflow handler to recurse into a nested run; it is supplied by the
// Executor, which alone knows how to run a
// Definition end to end.
func NewRegistry(subflowRunner HandlerFunc) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.handlers[TypeData] = HandlerFunc(dataHandler)
	r.handlers[TypeDelay] = HandlerFunc(delayHandler)
	r.handlers[TypeSubflow] = subflowRunner
	return r
}

// Register associates handler with type. Attempting to register a reserved
// built-in type fails with an EngineError whose Code is CodeValidation.
func (r *Registry) Register(nodeType string, handler Handler) error {
	if reservedTypes[nodeType] {
		return &EngineError{Message: "cannot override reserved node type: " + nodeType, Code: CodeValidation}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[nodeType] = handler
	return nil
}

// Resolve returns the handler registered for nodeType, or false if none is
// registered — the scheduler reports that as an UnknownTypeError.
func (r *Registry) Resolve(nodeType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[nodeType]
	return h, ok
}
