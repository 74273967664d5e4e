package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// dataHandler implements the "data" built-in: by default it echoes its
// resolved inputs back as
// the node result (S1: `A(data, inputs={m:'hi'})` completes with
// `result.m == 'hi'`). If inputs["path"] is set, it instead projects that
// single dotted path out of inputs via gjson, for nodes that only need one
// field of a large upstream result rather than the whole map.
func dataHandler(_ context.Context, _ NodeDef, _ map[string]any, inputs map[string]any) (any, error) {
	path, _ := inputs["path"].(string)
	if path == "" {
		out := make(map[string]any, len(inputs))
		for k, v := range inputs {
			out[k] = v
		}
		return out, nil
	}

	raw, err := json.Marshal(inputs)
	if err != nil {
		return nil, err
	}
	return gjson.GetBytes(raw, path).Value(), nil
}

// delayHandler implements the "delay" built-in: it sleeps for
// inputs["durationMs"] (an int or float64 number of milliseconds,
// defaulting to 0) and reports how long it waited (S1:
// `B(delay, 100ms)` completes with `result.delayed == true` and
// `result.duration == 100`).
func delayHandler(ctx context.Context, _ NodeDef, _ map[string]any, inputs map[string]any) (any, error) {
	ms := durationMs(inputs["durationMs"])

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return map[string]any{
		"delayed":  true,
		"duration": ms,
	}, nil
}

func durationMs(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}
