package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/flowcraft/dagflow-go/workflow"
)

// Console registers as node type "console". It writes inputs["message"]
// (formatted with fmt if not already a string) to Writer. There is no
// default writer: the caller supplies one via NewConsole, and a nil Writer
// panics on Execute.
type Console struct {
	Writer io.Writer
}

// NewConsole builds a Console handler writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{Writer: w}
}

func (c *Console) Execute(_ context.Context, node workflow.NodeDef, _ map[string]any, inputs map[string]any) (any, error) {
	msg := inputs["message"]
	var line string
	if s, ok := msg.(string); ok {
		line = s
	} else {
		line = fmt.Sprintf("%v", msg)
	}
	if _, err := fmt.Fprintf(c.Writer, "[%s] %s\n", node.ID, line); err != nil {
		return nil, fmt.Errorf("console: %w", err)
	}
	return map[string]any{"printed": line}, nil
}
