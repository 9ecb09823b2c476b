package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/Javier1112/BookGame/pkg/game"
)

const zhipuBaseURL = "https://open.bigmodel.cn/api/paas/v4"

// ZhipuInferencer implements Inferencer against Zhipu's OpenAI-compatible
// chat endpoint.
type ZhipuInferencer struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewZhipuInferencer creates a new inferencer instance using the OpenAI client
// pointed at Zhipu's API.
func NewZhipuInferencer(apiKey string, model string) *ZhipuInferencer {
	if model == "" {
		model = "glm-4.6v-flash"
	}
	client := openai.NewClient(
		option.WithBaseURL(zhipuBaseURL),
		option.WithAPIKey(apiKey),
	)
	return &ZhipuInferencer{
		client: &client,
		apiKey: apiKey,
		model:  model,
	}
}

func (z *ZhipuInferencer) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(z.apiKey),
		option.WithBaseURL(baseURL),
	)
	z.client = &client
}

func (z *ZhipuInferencer) SetModel(model string) {
	z.model = model
}

// Infer sends a system+user pair to the chat completion endpoint. Zhipu's
// "thinking" mode is disabled so the reply is a plain completion.
func (z *ZhipuInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (Completion, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		params = &(*params)
	}
	params.Model = cmp.Or(params.Model, z.model)
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: user},
				},
			},
		},
	}

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, 2048))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, 0.7))
	params.TopP = openai.Float(cmp.Or(params.TopP.Value, 1.0))
	params.SetExtraFields(map[string]any{
		"thinking": map[string]string{"type": "disabled"},
	})

	resp, err := z.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return Completion{}, wrapOpenAIError("zhipu", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("no choices returned")
	}

	choice := resp.Choices[0]
	return Completion{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		ToolCalls:    len(choice.Message.ToolCalls) > 0,
	}, nil
}

// wrapOpenAIError maps explicit 429 responses onto the shared throttling
// error so the retry runner can recognize them.
func wrapOpenAIError(provider string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return &game.ThrottledError{Provider: provider, Body: apiErr.Message}
	}
	return fmt.Errorf("%s inference error: %w", provider, err)
}
