package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/limiter"
)

const defaultZhipuImageURL = "https://open.bigmodel.cn/api/paas/v4/images/generations"

// ZhipuClient calls Zhipu's image-generation endpoint. Every call runs
// through the shared runner, so concurrency and 429 backoff match the story
// calls.
type ZhipuClient struct {
	httpClient *http.Client
	runner     *limiter.Runner

	apiKey         string
	model          string
	size           string
	watermark      bool
	minFilterLevel int
	timeout        time.Duration
	endpoint       string
}

type ZhipuOptions struct {
	APIKey         string
	Model          string
	Size           string
	Watermark      bool
	MinFilterLevel int
	Timeout        time.Duration
	Endpoint       string // defaults to the production URL
}

func NewZhipuClient(runner *limiter.Runner, opts ZhipuOptions) *ZhipuClient {
	if opts.Model == "" {
		opts.Model = "cogview-3-flash"
	}
	if opts.Size == "" {
		opts.Size = "896x672"
	}
	if opts.Endpoint == "" {
		opts.Endpoint = defaultZhipuImageURL
	}
	return &ZhipuClient{
		httpClient:     &http.Client{},
		runner:         runner,
		apiKey:         opts.APIKey,
		model:          opts.Model,
		size:           opts.Size,
		watermark:      opts.Watermark,
		minFilterLevel: opts.MinFilterLevel,
		timeout:        opts.Timeout,
		endpoint:       opts.Endpoint,
	}
}

// Generate issues the image call and returns the image URL. Explicit 429s are
// retried by the runner; a reported content-safety level below the configured
// minimum fails the call.
func (z *ZhipuClient) Generate(ctx context.Context, prompt, requestID string) (string, error) {
	cctx := ctx
	if z.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, z.timeout)
		defer cancel()
	}

	var body string
	err := z.runner.Do(cctx, "zhipu-image", func() error {
		var rerr error
		body, rerr = z.post(cctx, prompt, requestID)
		return rerr
	})
	if err != nil {
		return "", err
	}

	url := gjson.Get(body, "data.0.url")
	if !url.Exists() || url.String() == "" {
		return "", errors.New("image generation returned no usable URL")
	}

	if levels := filterLevels(body); tooLow(levels, z.minFilterLevel) {
		log.Warn("image content filter level below minimum",
			"requestID", requestID, "levels", levels, "required", z.minFilterLevel)
		return "", &game.ContentFilteredError{
			Provider: "zhipu-image",
			Detail:   fmt.Sprintf("content filter level below %d", z.minFilterLevel),
		}
	}

	return url.String(), nil
}

func (z *ZhipuClient) post(ctx context.Context, prompt, requestID string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"model":             z.model,
		"prompt":            prompt,
		"size":              z.size,
		"watermark_enabled": z.watermark,
		"user_id":           requestID,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+z.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := z.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image generation request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &game.ThrottledError{Provider: "zhipu-image", Body: truncate(string(text), 400)}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("image generation failed: %d %s %s",
			resp.StatusCode, resp.Status, truncate(string(text), 400))
	}
	return string(text), nil
}

// filterLevels pulls numeric levels out of the optional content_filter array,
// skipping entries of any other shape.
func filterLevels(body string) []int {
	var levels []int
	for _, item := range gjson.Get(body, "content_filter").Array() {
		level := item.Get("level")
		if level.Type == gjson.Number {
			levels = append(levels, int(level.Int()))
		}
	}
	return levels
}

func tooLow(levels []int, minimum int) bool {
	for _, level := range levels {
		if level < minimum {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
