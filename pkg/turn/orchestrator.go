// Package turn composes story and image generation into whole-turn results.
// A turn either fully succeeds or fails entirely: no partial output, no
// cached intermediate artifact reused across retries.
package turn

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/image"
)

// StoryGenerator yields a validated story payload for a request.
type StoryGenerator interface {
	Generate(ctx context.Context, req game.TurnRequest, requestID string) (game.StoryPayload, error)
}

// Orchestrator sequences story generation, prompt styling, and image
// generation for one turn.
type Orchestrator struct {
	story  StoryGenerator
	images image.Generator
}

func NewOrchestrator(story StoryGenerator, images image.Generator) *Orchestrator {
	return &Orchestrator{story: story, images: images}
}

// PlayTurn produces one complete turn. A story failure skips image
// generation; an image failure discards the story.
func (o *Orchestrator) PlayTurn(ctx context.Context, req game.TurnRequest, requestID string) (*game.TurnResponse, error) {
	startedAt := time.Now()

	payload, err := o.story.Generate(ctx, req, requestID)
	if err != nil {
		return nil, err
	}
	log.Info("story generated", "requestID", requestID, "ms", time.Since(startedAt).Milliseconds())

	styled := image.ApplyStyle(payload.ImagePrompt)
	imageURL, err := o.images.Generate(ctx, styled, requestID)
	if err != nil {
		return nil, err
	}
	log.Info("turn complete", "requestID", requestID, "ms", time.Since(startedAt).Milliseconds())

	return &game.TurnResponse{
		CharacterName:    payload.CharacterName,
		SceneDescription: payload.SceneDescription,
		ImagePrompt:      styled,
		ImageURL:         imageURL,
		Options:          payload.Options,
		IsGameOver:       payload.IsGameOver,
	}, nil
}
