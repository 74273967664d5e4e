// Package handlers provides example node-type plugins (arithmetic, string
// manipulation, console output, dependency merging, and branch conditions)
// registered through the engine's open handler registry extension point.
// None of these types are known to the scheduler; they demonstrate what a
// consumer's own handler package looks like.
package handlers

import (
	"context"
	"fmt"

	"github.com/flowcraft/dagflow-go/workflow"
)

// Arithmetic registers as node type "arithmetic". inputs: "op" (one of
// add, sub, mul, div), "a", "b" (numbers).
type Arithmetic struct{}

func (Arithmetic) Execute(_ context.Context, _ workflow.NodeDef, _ map[string]any, inputs map[string]any) (any, error) {
	op, _ := inputs["op"].(string)
	a, aok := toFloat(inputs["a"])
	b, bok := toFloat(inputs["b"])
	if !aok || !bok {
		return nil, fmt.Errorf("arithmetic: inputs a and b must be numbers")
	}

	switch op {
	case "add":
		return a + b, nil
	case "sub":
		return a - b, nil
	case "mul":
		return a * b, nil
	case "div":
		if b == 0 {
			return nil, fmt.Errorf("arithmetic: division by zero")
		}
		return a / b, nil
	default:
		return nil, fmt.Errorf("arithmetic: unknown op %q", op)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
