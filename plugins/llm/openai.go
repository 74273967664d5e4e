package llm

import (
	"fmt"

	"context"

	"github.com/flowcraft/dagflow-go/workflow"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"
)

// OpenAIHandler registers as node type "openai_chat".
type OpenAIHandler struct {
	APIKey    string
	ModelName string
}

// NewOpenAIHandler builds a handler for GPT chat completions. modelName
// defaults to "gpt-4o" if empty.
func NewOpenAIHandler(apiKey, modelName string) *OpenAIHandler {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &OpenAIHandler{APIKey: apiKey, ModelName: modelName}
}

// Execute implements workflow.Handler.
func (h *OpenAIHandler) Execute(ctx context.Context, node workflow.NodeDef, wfContext, inputs map[string]any) (any, error) {
	if h.APIKey == "" {
		return nil, fmt.Errorf("openai_chat: API key is required")
	}
	messages, system := messagesFromInputs(inputs)
	if system != "" {
		messages = append([]Message{{Role: "system", Content: system}}, messages...)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("openai_chat: no messages provided")
	}

	client := openaisdk.NewClient(option.WithAPIKey(h.APIKey))
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(h.ModelName),
		Messages: convertOpenAIMessages(messages),
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai_chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, nil
	}

	msg := resp.Choices[0].Message
	out := Output{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			Name:  tc.Function.Name,
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

func convertOpenAIMessages(messages []Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, m := range messages {
		switch m.Role {
		case "system":
			out[i] = openaisdk.SystemMessage(m.Content)
		case "assistant":
			out[i] = openaisdk.AssistantMessage(m.Content)
		default:
			out[i] = openaisdk.UserMessage(m.Content)
		}
	}
	return out
}

// parseToolArguments parses an OpenAI tool call's JSON-encoded arguments
// via gjson rather than a full json.Unmarshal into a typed struct, matching
// the dotted-path-reads style the "data" node handler uses.
func parseToolArguments(jsonStr string) map[string]any {
	if jsonStr == "" || !gjson.Valid(jsonStr) {
		return nil
	}
	out := make(map[string]any)
	gjson.Parse(jsonStr).ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}
