package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowcraft/dagflow-go/workflow"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Stringh registers as node type "string". inputs: "op" (concat, upper,
// lower, template), "values" ([]any for concat, each formatted with %v), "value" (string
// for upper/lower), "template" + "data" (dotted-path substitution via
// gjson for "template").
type Stringh struct{}

func (Stringh) Execute(_ context.Context, _ workflow.NodeDef, _ map[string]any, inputs map[string]any) (any, error) {
	op, _ := inputs["op"].(string)
	switch op {
	case "concat":
		values, _ := inputs["values"].([]any)
		var b strings.Builder
		for _, v := range values {
			fmt.Fprintf(&b, "%v", v)
		}
		return b.String(), nil
	case "upper":
		v, _ := inputs["value"].(string)
		return strings.ToUpper(v), nil
	case "lower":
		v, _ := inputs["value"].(string)
		return strings.ToLower(v), nil
	case "template":
		return renderTemplate(inputs)
	default:
		return nil, fmt.Errorf("string: unknown op %q", op)
	}
}

// renderTemplate substitutes "{{dotted.path}}" placeholders in
// inputs["template"] with values read from inputs["data"] via gjson
// dotted-path lookups, matching the "data" node handler's read style.
func renderTemplate(inputs map[string]any) (string, error) {
	tmpl, _ := inputs["template"].(string)
	data, _ := inputs["data"].(map[string]any)

	raw, err := sjson.Set("{}", "data", data)
	if err != nil {
		return "", fmt.Errorf("string: failed to encode template data: %w", err)
	}
	root := gjson.Parse(raw).Get("data")

	var out strings.Builder
	for {
		start := strings.Index(tmpl, "{{")
		if start < 0 {
			out.WriteString(tmpl)
			break
		}
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			out.WriteString(tmpl)
			break
		}
		end += start
		out.WriteString(tmpl[:start])
		path := strings.TrimSpace(tmpl[start+2 : end])
		out.WriteString(root.Get(path).String())
		tmpl = tmpl[end+2:]
	}
	return out.String(), nil
}
