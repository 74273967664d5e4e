package workflow

import (
	"context"
	"fmt"
	"time"
)

// resolveTimeout applies the node-override > engine-default precedence
// chain for a node's execution timeout.
func resolveTimeout(node NodeDef, defaultTimeout time.Duration) time.Duration {
	if node.Timeout > 0 {
		return node.Timeout
	}
	return defaultTimeout
}

// handlerResult is what runHandler sends back over its result channel.
type handlerResult struct {
	value any
	err   error
}

// runHandlerWithTimeout races handler.Execute against timeout (if > 0).
// On timeout it returns immediately with a TimeoutError and does NOT wait
// for the handler goroutine to finish — its work is abandoned, and the
// goroutine's eventual result, if any, is discarded when it completes.
func runHandlerWithTimeout(ctx context.Context, handler Handler, node NodeDef, wfContext, inputs map[string]any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		return handler.Execute(ctx, node, wfContext, inputs)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan handlerResult, 1)
	go func() {
		v, err := handler.Execute(execCtx, node, wfContext, inputs)
		resultCh <- handlerResult{value: v, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.value, r.err
	case <-execCtx.Done():
		return nil, &NodeError{
			Message: fmt.Sprintf("node %s execution timeout", node.ID),
			Code:    CodeTimeout,
			NodeID:  node.ID,
		}
	}
}
