package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"github.com/Javier1112/BookGame/pkg/game"
)

// GeminiInferencer is an alternate story provider backed by Gemini.
type GeminiInferencer struct {
	client *genai.Client
	apiKey string
	model  string
}

func NewGeminiInferencer(apiKey string, model string) (*GeminiInferencer, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiInferencer{
		client: client,
		apiKey: apiKey,
		model:  model,
	}, nil
}

// Infer sends the system+user pair to Gemini. Safety-blocked candidates are
// reported through the shared content-filter error so callers never retry.
func (g *GeminiInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (Completion, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 2048)),
	}
	if params.Temperature.Valid() {
		config.Temperature = genai.Ptr(float32(params.Temperature.Value))
	}

	result, err := g.client.Models.GenerateContent(
		ctx,
		cmp.Or(params.Model, g.model),
		genai.Text(user),
		config,
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return Completion{}, &game.ThrottledError{Provider: "gemini", Body: apiErr.Message}
		}
		return Completion{}, fmt.Errorf("gemini inference error: %w", err)
	}

	finish := ""
	if len(result.Candidates) > 0 {
		finish = string(result.Candidates[0].FinishReason)
		if result.Candidates[0].FinishReason == genai.FinishReasonSafety {
			return Completion{}, &game.ContentFilteredError{Provider: "gemini", Detail: "finish_reason=SAFETY"}
		}
	}

	return Completion{
		Text:         result.Text(),
		FinishReason: finish,
	}, nil
}
