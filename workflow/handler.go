package workflow

import "context"

// Handler executes one node's logic. It receives the node definition, a
// read-only snapshot of the shared workflow context, and the node's
// resolved inputs, and returns a result or an error.
//
// Implementations must be safe to invoke from any goroutine: a round may
// dispatch several handlers concurrently.
type Handler interface {
	Execute(ctx context.Context, node NodeDef, wfContext map[string]any, inputs map[string]any) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface, the same
// pattern langgraph-go's NodeFunc uses for Node.
type HandlerFunc func(ctx context.Context, node NodeDef, wfContext map[string]any, inputs map[string]any) (any, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, node NodeDef, wfContext map[string]any, inputs map[string]any) (any, error) {
	return f(ctx, node, wfContext, inputs)
}

// Reserved built-in node types. These route to handlers the Registry wires
// up itself (see builtin.go); attempting to Register one of them fails.
const (
	TypeData    = "data"
	TypeDelay   = "delay"
	TypeSubflow = "subflow"
)

var reservedTypes = map[string]bool{
	TypeData:    true,
	TypeDelay:   true,
	TypeSubflow: true,
}
