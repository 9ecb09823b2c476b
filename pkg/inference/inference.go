// Package inference abstracts the chat-completion providers used for story
// generation. Providers translate their own throttling and safety signals
// into the shared error taxonomy so callers never inspect provider errors.
package inference

import (
	"context"

	"github.com/openai/openai-go/v3"
)

// Completion carries the model output plus the metadata the story generator
// needs to decide between accept, harden-and-retry, and fail.
type Completion struct {
	Text         string
	FinishReason string
	ToolCalls    bool
}

// Inferencer runs a single system+user chat completion.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (Completion, error)
}
