package llm

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flowcraft/dagflow-go/workflow"
)

// AnthropicHandler registers as node type "anthropic_chat". Handlers are
// plain Registry.Register entries, never scheduler built-ins.
type AnthropicHandler struct {
	APIKey    string
	ModelName string
}

// NewAnthropicHandler builds a handler for Claude chat completions.
// modelName defaults to the latest Sonnet release if empty.
func NewAnthropicHandler(apiKey, modelName string) *AnthropicHandler {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &AnthropicHandler{APIKey: apiKey, ModelName: modelName}
}

// Execute implements workflow.Handler. inputs["messages"] is a []any of
// {"role","content"} maps; every "system" entry is extracted, and their
// contents are joined with blank lines into the Anthropic system parameter.
func (h *AnthropicHandler) Execute(ctx context.Context, node workflow.NodeDef, wfContext, inputs map[string]any) (any, error) {
	if h.APIKey == "" {
		return nil, fmt.Errorf("anthropic_chat: API key is required")
	}
	messages, system := messagesFromInputs(inputs)
	if len(messages) == 0 {
		return nil, fmt.Errorf("anthropic_chat: no messages provided")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(h.APIKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(h.ModelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic_chat: %w", err)
	}

	out := Output{}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			input, _ := b.Input.(map[string]any)
			out.ToolCalls = append(out.ToolCalls, ToolCall{Name: b.Name, Input: input})
		}
	}
	return out, nil
}

func convertMessages(messages []Message) []anthropicsdk.MessageParam {
	out := make([]anthropicsdk.MessageParam, len(messages))
	for i, m := range messages {
		switch m.Role {
		case "assistant":
			out[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Content))
		default:
			out[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content))
		}
	}
	return out
}
