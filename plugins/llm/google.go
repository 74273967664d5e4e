package llm

import (
	"context"
	"fmt"

	"github.com/flowcraft/dagflow-go/workflow"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GoogleHandler registers as node type "google_chat".
type GoogleHandler struct {
	APIKey    string
	ModelName string
}

// NewGoogleHandler builds a handler for Gemini chat completions.
// modelName defaults to "gemini-2.5-flash" if empty.
func NewGoogleHandler(apiKey, modelName string) *GoogleHandler {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GoogleHandler{APIKey: apiKey, ModelName: modelName}
}

// Execute implements workflow.Handler. Google's API takes undifferentiated
// content parts rather than role-tagged turns, so messages collapse to
// their text in order.
func (h *GoogleHandler) Execute(ctx context.Context, node workflow.NodeDef, wfContext, inputs map[string]any) (any, error) {
	if h.APIKey == "" {
		return nil, fmt.Errorf("google_chat: API key is required")
	}
	messages, system := messagesFromInputs(inputs)
	if len(messages) == 0 {
		return nil, fmt.Errorf("google_chat: no messages provided")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(h.APIKey))
	if err != nil {
		return nil, fmt.Errorf("google_chat: failed to create client: %w", err)
	}
	defer client.Close()

	genModel := client.GenerativeModel(h.ModelName)
	if system != "" {
		genModel.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	var parts []genai.Part
	for _, m := range messages {
		if m.Content != "" {
			parts = append(parts, genai.Text(m.Content))
		}
	}

	resp, err := genModel.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("google_chat: %w", err)
	}

	out := Output{}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(t)
		}
	}
	return out, nil
}
