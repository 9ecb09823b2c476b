package story

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"

	"github.com/Javier1112/BookGame/pkg/game"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var storyPayloadSchema = generateSchema[game.StoryPayload]()

// ResponseFormat asks providers that support structured outputs to constrain
// the reply to the story payload shape. Best effort: providers that ignore it
// still go through extraction and validation.
func ResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "story_turn",
		Description: openai.String("One narrative game turn: scene, character, options, image prompt, termination flag"),
		Schema:      storyPayloadSchema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
