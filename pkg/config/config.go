// Package config parses the environment into a typed configuration.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port           int      `env:"PORT" envDefault:"8788"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	ZhipuTextAPIKey  string        `env:"ZHIPU_TEXT_API_KEY"`
	ZhipuImageAPIKey string        `env:"ZHIPU_IMAGE_API_KEY"`
	StoryModel       string        `env:"ZHIPU_STORY_MODEL" envDefault:"glm-4.6v-flash"`
	ImageModel       string        `env:"ZHIPU_IMAGE_MODEL" envDefault:"cogview-3-flash"`
	ImageSize        string        `env:"ZHIPU_IMAGE_SIZE" envDefault:"896x672"`
	StoryTimeout     time.Duration `env:"ZHIPU_STORY_TIMEOUT" envDefault:"120s"`
	ImageTimeout     time.Duration `env:"ZHIPU_IMAGE_TIMEOUT" envDefault:"120s"`
	Temperature      float64       `env:"ZHIPU_TEMPERATURE" envDefault:"0.7"`
	MaxConcurrent    int           `env:"ZHIPU_MAX_CONCURRENT" envDefault:"2"`
	ImageWatermark   bool          `env:"ZHIPU_IMAGE_WATERMARK_ENABLED" envDefault:"false"`
	MinFilterLevel   int           `env:"ZHIPU_IMAGE_CONTENT_FILTER_LEVEL" envDefault:"3"`

	MaxTurnsPerClient int `env:"MAX_TURNS_PER_CLIENT" envDefault:"1"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	ComfyBaseURL       string `env:"COMFYUI_BASE_URL"`
	ComfyWorkflowPath  string `env:"COMFYUI_WORKFLOW" envDefault:"workflow.json"`
	ComfyOutputDir     string `env:"COMFYUI_OUTPUT_DIR" envDefault:"generated"`
	ComfyPublicBaseURL string `env:"COMFYUI_PUBLIC_BASE_URL"`
	ComfyWidth         int    `env:"COMFYUI_WIDTH" envDefault:"896"`
	ComfyHeight        int    `env:"COMFYUI_HEIGHT" envDefault:"672"`
}

// Load parses the environment and clamps values into their safe ranges.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}

	if cfg.Temperature < 0.1 {
		cfg.Temperature = 0.1
	}
	if cfg.Temperature > 1 {
		cfg.Temperature = 1
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxTurnsPerClient < 1 {
		cfg.MaxTurnsPerClient = 1
	}
	return cfg, nil
}
