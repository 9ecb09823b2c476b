package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/webp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/limiter"
)

const (
	comfyClientID     = "bookgame"
	comfyPollInterval = time.Second
)

// Workflow node IDs patched into the submitted graph.
const (
	comfyPromptNode = "45"
	comfyLatentNode = "41"
	comfySeedNode   = "44"
	comfyOutputNode = "9"
)

// ComfyClient drives a local ComfyUI instance through its three-step
// workflow API: submit a parameterized job, poll the history endpoint until
// an output artifact appears or the timeout elapses, then fetch the artifact
// by reference. Artifacts are re-encoded as WebP under OutputDir and served
// from PublicBaseURL.
type ComfyClient struct {
	httpClient *http.Client
	runner     *limiter.Runner

	baseURL       string
	workflow      string
	width, height int
	timeout       time.Duration
	pollInterval  time.Duration
	outputDir     string
	publicBaseURL string
}

type ComfyOptions struct {
	BaseURL       string
	WorkflowPath  string
	Width, Height int
	Timeout       time.Duration
	OutputDir     string
	PublicBaseURL string
	PollInterval  time.Duration // defaults to 1s
}

func NewComfyClient(runner *limiter.Runner, opts ComfyOptions) (*ComfyClient, error) {
	raw, err := os.ReadFile(opts.WorkflowPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow template: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("workflow template %s is not valid JSON", opts.WorkflowPath)
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = comfyPollInterval
	}
	return &ComfyClient{
		httpClient:    &http.Client{},
		runner:        runner,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		workflow:      string(raw),
		width:         opts.Width,
		height:        opts.Height,
		timeout:       opts.Timeout,
		pollInterval:  opts.PollInterval,
		outputDir:     opts.OutputDir,
		publicBaseURL: opts.PublicBaseURL,
	}, nil
}

func (c *ComfyClient) Generate(ctx context.Context, prompt, requestID string) (string, error) {
	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var publicURL string
	err := c.runner.Do(cctx, "comfyui", func() error {
		promptID, err := c.submit(cctx, prompt)
		if err != nil {
			return err
		}
		log.Debug("comfyui job submitted", "requestID", requestID, "promptID", promptID)

		filename, subfolder, kind, err := c.waitForResult(cctx, promptID)
		if err != nil {
			return err
		}

		data, err := c.fetchArtifact(cctx, filename, subfolder, kind)
		if err != nil {
			return err
		}

		publicURL, err = c.saveWebP(data, requestID)
		return err
	})
	if err != nil {
		return "", err
	}
	return publicURL, nil
}

// submit patches the workflow template with the prompt, output size, and a
// fresh sampler seed, then posts it.
func (c *ComfyClient) submit(ctx context.Context, prompt string) (string, error) {
	workflow := c.workflow
	var err error
	for _, patch := range []struct {
		path  string
		value any
	}{
		{comfyPromptNode + ".inputs.text", prompt},
		{comfyLatentNode + ".inputs.width", c.width},
		{comfyLatentNode + ".inputs.height", c.height},
		{comfySeedNode + ".inputs.seed", rand.Int64N(1 << 53)},
	} {
		workflow, err = sjson.Set(workflow, patch.path, patch.value)
		if err != nil {
			return "", fmt.Errorf("failed to patch workflow %s: %w", patch.path, err)
		}
	}

	body, err := json.Marshal(map[string]any{
		"client_id": comfyClientID,
		"prompt":    json.RawMessage(workflow),
	})
	if err != nil {
		return "", err
	}

	text, err := c.do(ctx, http.MethodPost, c.baseURL+"/prompt", body)
	if err != nil {
		return "", err
	}
	promptID := gjson.Get(text, "prompt_id").String()
	if promptID == "" {
		return "", fmt.Errorf("comfyui /prompt returned no prompt_id")
	}
	return promptID, nil
}

// waitForResult polls the history endpoint until the output node reports an
// image or the context deadline elapses.
func (c *ComfyClient) waitForResult(ctx context.Context, promptID string) (filename, subfolder, kind string, err error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		text, err := c.do(ctx, http.MethodGet, c.baseURL+"/history/"+promptID, nil)
		if err == nil {
			img := gjson.Get(text, promptID+".outputs."+comfyOutputNode+".images.0")
			if img.Get("filename").String() != "" {
				return img.Get("filename").String(),
					img.Get("subfolder").String(),
					img.Get("type").String(), nil
			}
		} else if game.IsThrottled(err) {
			return "", "", "", err
		}

		select {
		case <-ctx.Done():
			return "", "", "", fmt.Errorf("timed out waiting for comfyui result (prompt_id=%s): %w", promptID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *ComfyClient) fetchArtifact(ctx context.Context, filename, subfolder, kind string) ([]byte, error) {
	if kind == "" {
		kind = "output"
	}
	params := url.Values{
		"filename":  {filename},
		"subfolder": {subfolder},
		"type":      {kind},
	}
	text, err := c.do(ctx, http.MethodGet, c.baseURL+"/view?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// saveWebP re-encodes the PNG artifact as WebP and returns its public URL.
func (c *ComfyClient) saveWebP(data []byte, requestID string) (string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		var err2 error
		img, _, err2 = image.Decode(bytes.NewReader(data))
		if err2 != nil {
			return "", fmt.Errorf("failed to decode artifact (png: %v, generic: %v)", err, err2)
		}
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode webp: %w", err)
	}

	filename := fmt.Sprintf("%s-%d.webp", requestID, time.Now().UnixMilli())
	if err := os.WriteFile(filepath.Join(c.outputDir, filename), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	if c.publicBaseURL == "" {
		return "/generated/" + filename, nil
	}
	return strings.TrimRight(c.publicBaseURL, "/") + "/generated/" + filename, nil
}

func (c *ComfyClient) do(ctx context.Context, method, rawURL string, body []byte) (string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("comfyui request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &game.ThrottledError{Provider: "comfyui", Body: truncate(string(text), 400)}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("comfyui %s %s failed: %d %s", method, rawURL, resp.StatusCode, truncate(string(text), 400))
	}
	return string(text), nil
}
