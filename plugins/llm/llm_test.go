package llm

import (
	"context"
	"testing"

	"github.com/flowcraft/dagflow-go/workflow"
)

func TestMessagesFromInputsExtractsSystemSeparately(t *testing.T) {
	inputs := map[string]any{
		"messages": []any{
			map[string]any{"role": "system", "content": "be terse"},
			map[string]any{"role": "user", "content": "hi"},
			map[string]any{"role": "system", "content": "always reply in English"},
		},
	}
	messages, system := messagesFromInputs(inputs)

	if len(messages) != 1 || messages[0].Role != "user" || messages[0].Content != "hi" {
		t.Errorf("messages = %+v, want exactly the one user turn", messages)
	}
	want := "be terse\n\nalways reply in English"
	if system != want {
		t.Errorf("system = %q, want %q", system, want)
	}
}

func TestMessagesFromInputsIgnoresMalformedEntries(t *testing.T) {
	inputs := map[string]any{"messages": []any{"not-a-map", 42, map[string]any{"role": "user", "content": "ok"}}}
	messages, _ := messagesFromInputs(inputs)
	if len(messages) != 1 || messages[0].Content != "ok" {
		t.Errorf("messages = %+v, want only the well-formed entry", messages)
	}
}

func TestPromptFromInputsPrefersExplicitPrompt(t *testing.T) {
	inputs := map[string]any{
		"prompt":   "explicit",
		"messages": []any{map[string]any{"role": "user", "content": "from messages"}},
	}
	if got := promptFromInputs(inputs); got != "explicit" {
		t.Errorf("promptFromInputs = %q, want explicit", got)
	}
}

func TestPromptFromInputsFallsBackToLastMessage(t *testing.T) {
	inputs := map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "first"},
			map[string]any{"role": "user", "content": "last"},
		},
	}
	if got := promptFromInputs(inputs); got != "last" {
		t.Errorf("promptFromInputs = %q, want last", got)
	}
}

func TestAnthropicHandlerDefaultsModelName(t *testing.T) {
	h := NewAnthropicHandler("key", "")
	if h.ModelName == "" {
		t.Error("expected a default model name when none is given")
	}
}

func TestAnthropicHandlerRequiresAPIKey(t *testing.T) {
	h := NewAnthropicHandler("", "x")
	_, err := h.Execute(context.Background(), workflow.NodeDef{}, nil, map[string]any{"messages": []any{
		map[string]any{"role": "user", "content": "hi"},
	}})
	if err == nil {
		t.Error("expected an error when APIKey is empty")
	}
}

func TestAnthropicHandlerRequiresMessages(t *testing.T) {
	h := NewAnthropicHandler("key", "x")
	_, err := h.Execute(context.Background(), workflow.NodeDef{}, nil, map[string]any{})
	if err == nil {
		t.Error("expected an error when no messages are provided")
	}
}

func TestOpenAIHandlerRequiresAPIKey(t *testing.T) {
	h := NewOpenAIHandler("", "")
	_, err := h.Execute(context.Background(), workflow.NodeDef{}, nil, map[string]any{"messages": []any{
		map[string]any{"role": "user", "content": "hi"},
	}})
	if err == nil {
		t.Error("expected an error when APIKey is empty")
	}
}

func TestGoogleHandlerRequiresMessages(t *testing.T) {
	h := NewGoogleHandler("key", "")
	_, err := h.Execute(context.Background(), workflow.NodeDef{}, nil, map[string]any{})
	if err == nil {
		t.Error("expected an error when no messages are provided")
	}
}

func TestParseToolArgumentsHandlesInvalidJSON(t *testing.T) {
	if got := parseToolArguments(""); got != nil {
		t.Errorf("parseToolArguments(\"\") = %v, want nil", got)
	}
	if got := parseToolArguments("not json"); got != nil {
		t.Errorf("parseToolArguments(invalid) = %v, want nil", got)
	}
	got := parseToolArguments(`{"city":"nyc","count":3}`)
	if got["city"] != "nyc" || got["count"] != float64(3) {
		t.Errorf("parseToolArguments = %+v", got)
	}
}
