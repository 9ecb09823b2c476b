// Package story turns one validated request into one validated story payload,
// surviving prose-wrapped JSON, tool-happy models, and structurally broken
// replies via a bounded harden/repair protocol.
package story

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/inference"
	"github.com/Javier1112/BookGame/pkg/limiter"
)

const maxChatAttempts = 2

// Generator issues the narrative-generation call and validates its output.
type Generator struct {
	inf         inference.Inferencer
	runner      *limiter.Runner
	temperature float64
	timeout     time.Duration
}

func NewGenerator(inf inference.Inferencer, runner *limiter.Runner, temperature float64, timeout time.Duration) *Generator {
	return &Generator{
		inf:         inf,
		runner:      runner,
		temperature: temperature,
		timeout:     timeout,
	}
}

// Generate runs the full story protocol: one primary call, then at most one
// repair sub-dialogue when the payload cannot be parsed or validated.
func (g *Generator) Generate(ctx context.Context, req game.TurnRequest, requestID string) (game.StoryPayload, error) {
	user := BuildUserPrompt(req)

	first, err := g.callChatJSONObject(ctx, systemPrompt, user, requestID)
	if err != nil {
		return game.StoryPayload{}, err
	}

	payload, parseErr := parseStoryPayload(first)
	if parseErr == nil {
		return payload, nil
	}

	log.Warn("story payload invalid, starting repair pass", "requestID", requestID, "err", parseErr)
	repairUser := "请将下面内容转换为符合要求的 JSON 结构。\n\n内容：\n" + first
	second, err := g.callChatJSONObject(ctx, repairSystemPrompt, repairUser, requestID)
	if err != nil {
		return game.StoryPayload{}, err
	}
	return parseStoryPayload(second)
}

// callChatJSONObject issues a chat call and returns the extracted JSON object
// substring. Empty content and missing JSON each earn one hardened re-issue;
// safety rejections fail immediately.
func (g *Generator) callChatJSONObject(ctx context.Context, system, user, requestID string) (string, error) {
	currentSystem := system
	for attempt := 1; attempt <= maxChatAttempts; attempt++ {
		comp, err := g.infer(ctx, currentSystem, user)
		if err != nil {
			return "", err
		}
		log.Debug("story chat done",
			"requestID", requestID, "attempt", attempt,
			"finishReason", cmp.Or(comp.FinishReason, "unknown"))

		if comp.FinishReason == "sensitive" {
			return "", &game.ContentFilteredError{Provider: "story", Detail: "finish_reason=sensitive"}
		}

		text := strings.TrimSpace(comp.Text)
		if text == "" {
			if attempt < maxChatAttempts {
				currentSystem = system + hardenedNoTools
				continue
			}
			return "", &game.MalformedOutputError{Reason: fmt.Sprintf(
				"empty content (attempt=%d, finish_reason=%s, tool_calls=%t)",
				attempt, cmp.Or(comp.FinishReason, "unknown"), comp.ToolCalls)}
		}

		if extracted := ExtractJSONObject(text); extracted != "" {
			return extracted, nil
		}
		if attempt < maxChatAttempts {
			currentSystem = system + hardenedJSONOnly
			continue
		}
		return "", &game.MalformedOutputError{Reason: "reply contains no parsable JSON object"}
	}
	return "", &game.MalformedOutputError{Reason: "chat attempts exhausted"}
}

func (g *Generator) infer(ctx context.Context, system, user string) (inference.Completion, error) {
	cctx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params := &openai.ChatCompletionNewParams{
		ResponseFormat: ResponseFormat(),
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}

	var comp inference.Completion
	err := g.runner.Do(cctx, "story", func() error {
		var ierr error
		comp, ierr = g.inf.Infer(cctx, params, system, user)
		return ierr
	})
	return comp, err
}

// parseStoryPayload validates the extracted object field-by-field; provider
// JSON is never trusted as typed data.
func parseStoryPayload(raw string) (game.StoryPayload, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return game.StoryPayload{}, &game.MalformedOutputError{Reason: "story reply is not a JSON object: " + err.Error()}
	}

	character, _ := obj["character_name"].(string)
	scene, _ := obj["scene_description"].(string)
	imagePrompt, _ := obj["image_prompt"].(string)
	isGameOver, _ := obj["is_game_over"].(bool)

	if character == "" || scene == "" || imagePrompt == "" {
		return game.StoryPayload{}, &game.MalformedOutputError{Reason: "story reply is missing required fields"}
	}

	return game.StoryPayload{
		CharacterName:    character,
		SceneDescription: scene,
		ImagePrompt:      imagePrompt,
		IsGameOver:       isGameOver,
		Options:          game.NormalizeOptions(obj["options"], isGameOver),
	}, nil
}
