package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/mvaldesr/tabletalk/internal/domain"
)

// GeminiClient implements domain.CodeGenerator against the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key must be set")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

// GenerateScript asks the model for an intent plus script. The oracle is
// unreliable by contract: malformed JSON, a missing intent or a missing
// explanation are tolerated here with defaults; a missing script is left
// for the caller to reject. Failures are never retried.
func (g *GeminiClient) GenerateScript(
	ctx context.Context,
	prompt string,
	columns []string,
	sample map[string]any,
) (*domain.Generation, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildUserPrompt(prompt, columns, sample), genai.RoleUser),
	}

	temp := float32(0.2)
	outputTokens := int32(2048)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   outputTokens,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, domain.Wrap(domain.KindGeneration, err, "gemini generate content")
	}

	text := stripFences(res.Text())
	if text == "" {
		return nil, domain.E(domain.KindGeneration, "gemini returned empty text")
	}

	var payload struct {
		Intent      string `json:"intent"`
		Script      string `json:"script"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		// Some replies are bare scripts instead of JSON; treat the whole
		// text as a mutation script rather than failing the request.
		return &domain.Generation{
			Intent: domain.IntentDataMutation,
			Script: text,
		}, nil
	}

	gen := &domain.Generation{
		Script:      payload.Script,
		Explanation: payload.Explanation,
	}
	switch payload.Intent {
	case string(domain.IntentVisualUpdate):
		gen.Intent = domain.IntentVisualUpdate
	default:
		gen.Intent = domain.IntentDataMutation
	}
	return gen, nil
}
