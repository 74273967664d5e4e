package handlers

import (
	"context"
	"fmt"

	"github.com/flowcraft/dagflow-go/workflow"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Condition registers as node type "condition". It evaluates
// inputs["path"] (a gjson dotted path into inputs["data"]) against
// inputs["equals"]/"gt"/"lt", failing the node when the comparison does
// not hold. What happens next is up to the node's failure policy: if the
// node ends SKIPPED (RETRY_AND_SKIP, or GRACEFUL_DEGRADATION without a
// fallback), its dependents are skipped by the ordinary SKIPPED-propagation
// rule, giving if/else-style branching; under FAIL_FAST (the default) or
// RETRY_AND_FAIL the failure fails the whole workflow.
type Condition struct{}

func (Condition) Execute(_ context.Context, _ workflow.NodeDef, _ map[string]any, inputs map[string]any) (any, error) {
	path, _ := inputs["path"].(string)
	data, _ := inputs["data"].(map[string]any)

	raw, err := sjson.Set("{}", "data", data)
	if err != nil {
		return nil, fmt.Errorf("condition: failed to encode data: %w", err)
	}
	value := gjson.Parse(raw).Get("data." + path)

	if eq, ok := inputs["equals"]; ok {
		if fmt.Sprintf("%v", eq) != value.String() {
			return nil, fmt.Errorf("condition: %s = %q, expected %v", path, value.String(), eq)
		}
		return true, nil
	}
	if gt, ok := toFloat(inputs["gt"]); ok {
		if value.Float() <= gt {
			return nil, fmt.Errorf("condition: %s = %v, expected > %v", path, value.Float(), gt)
		}
		return true, nil
	}
	if lt, ok := toFloat(inputs["lt"]); ok {
		if value.Float() >= lt {
			return nil, fmt.Errorf("condition: %s = %v, expected < %v", path, value.Float(), lt)
		}
		return true, nil
	}
	return nil, fmt.Errorf("condition: no comparison (equals/gt/lt) specified")
}
