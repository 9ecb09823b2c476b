package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	gommon "github.com/labstack/gommon/log"

	"github.com/Javier1112/BookGame/pkg/config"
	"github.com/Javier1112/BookGame/pkg/image"
	"github.com/Javier1112/BookGame/pkg/inference"
	"github.com/Javier1112/BookGame/pkg/limiter"
	"github.com/Javier1112/BookGame/pkg/server"
	"github.com/Javier1112/BookGame/pkg/story"
	"github.com/Javier1112/BookGame/pkg/turn"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}

	lim := limiter.New(cfg.MaxConcurrent)
	runner := limiter.NewRunner(lim, nil)

	inf, err := pickInferencer(cfg)
	if err != nil {
		log.Fatal("failed to configure story provider", "err", err)
	}
	storyGen := story.NewGenerator(inf, runner, cfg.Temperature, cfg.StoryTimeout)

	images, generatedDir, err := pickImageGenerator(cfg, runner)
	if err != nil {
		log.Fatal("failed to configure image provider", "err", err)
	}

	orchestrator := turn.NewOrchestrator(storyGen, images)
	gate := limiter.NewGate(cfg.MaxTurnsPerClient)

	srv := server.NewServer(ctx, orchestrator, gate, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		GeneratedDir:   generatedDir,
	})
	srv.Echo.Logger.SetLevel(gommon.INFO)

	addr := fmt.Sprintf(":%d", cfg.Port)
	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("shutdown failed", "err", err)
		}
		close(finishedShutDown)
	}()

	log.Info("bookgame server listening", "addr", addr)
	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "err", err)
	}
	<-finishedShutDown
}

// pickInferencer selects the story provider: Gemini when a key is set, then
// Zhipu, then OpenAI — which doubles as a local OpenAI-compatible endpoint
// when no key is configured at all.
func pickInferencer(cfg config.Config) (inference.Inferencer, error) {
	if cfg.GeminiAPIKey != "" {
		return inference.NewGeminiInferencer(cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if cfg.ZhipuTextAPIKey != "" {
		return inference.NewZhipuInferencer(cfg.ZhipuTextAPIKey, cfg.StoryModel), nil
	}

	openAI := inference.NewOpenAIInferencer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if cfg.OpenAIAPIKey == "" {
		log.Warn("no story provider key configured, using local OpenAI-compatible endpoint")
		openAI.ChangeBaseURL("http://localhost:1234/v1")
		openAI.SetModel("")
	}
	return openAI, nil
}

// pickImageGenerator prefers the local ComfyUI backend when configured, else
// Zhipu's hosted endpoint. The second return value is the directory of
// locally generated artifacts to serve, when there is one.
func pickImageGenerator(cfg config.Config, runner *limiter.Runner) (image.Generator, string, error) {
	if cfg.ComfyBaseURL != "" {
		comfy, err := image.NewComfyClient(runner, image.ComfyOptions{
			BaseURL:       cfg.ComfyBaseURL,
			WorkflowPath:  cfg.ComfyWorkflowPath,
			Width:         cfg.ComfyWidth,
			Height:        cfg.ComfyHeight,
			Timeout:       cfg.ImageTimeout,
			OutputDir:     cfg.ComfyOutputDir,
			PublicBaseURL: cfg.ComfyPublicBaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return comfy, cfg.ComfyOutputDir, nil
	}

	return image.NewZhipuClient(runner, image.ZhipuOptions{
		APIKey:         cfg.ZhipuImageAPIKey,
		Model:          cfg.ImageModel,
		Size:           cfg.ImageSize,
		Watermark:      cfg.ImageWatermark,
		MinFilterLevel: cfg.MinFilterLevel,
		Timeout:        cfg.ImageTimeout,
	}), "", nil
}
