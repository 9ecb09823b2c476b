package image_test

import (
	"bytes"
	"context"
	"encoding/json"
	goimage "image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Javier1112/BookGame/pkg/image"
)

const testWorkflow = `{
	"45": {"inputs": {"text": "placeholder"}},
	"41": {"inputs": {"width": 0, "height": 0}},
	"44": {"inputs": {"seed": 0}},
	"9": {"inputs": {}}
}`

func writeWorkflow(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(testWorkflow), 0o644))
	return path
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := goimage.NewRGBA(goimage.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestComfyGenerateFullCycle(t *testing.T) {
	var polls atomic.Int64
	var submitted atomic.Value

	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]string{"prompt_id": "job-1"})
		raw := new(bytes.Buffer)
		raw.ReadFrom(r.Body)
		submitted.Store(raw.String())
		w.Write(body)
	})
	mux.HandleFunc("/history/job-1", func(w http.ResponseWriter, r *http.Request) {
		// Pending on the first poll, ready afterwards.
		if polls.Add(1) == 1 {
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"job-1":{"outputs":{"9":{"images":[{"filename":"out.png","subfolder":"","type":"output"}]}}}}`))
	})
	artifact := pngBytes(t)
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "out.png", r.URL.Query().Get("filename"))
		w.Write(artifact)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outputDir := t.TempDir()
	client, err := image.NewComfyClient(testRunner(), image.ComfyOptions{
		BaseURL:      srv.URL,
		WorkflowPath: writeWorkflow(t),
		Width:        896,
		Height:       672,
		Timeout:      10 * time.Second,
		OutputDir:    outputDir,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	url, err := client.Generate(context.Background(), "雨中的庄园", "req-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/generated/"))
	assert.True(t, strings.HasSuffix(url, ".webp"))
	assert.GreaterOrEqual(t, polls.Load(), int64(2))

	// The artifact landed in the output directory.
	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, strings.TrimPrefix(url, "/generated/"), entries[0].Name())

	// The workflow was patched with the prompt and output size.
	body, _ := submitted.Load().(string)
	workflow := gjson.Get(body, "prompt")
	assert.Equal(t, "雨中的庄园", workflow.Get("45.inputs.text").String())
	assert.Equal(t, int64(896), workflow.Get("41.inputs.width").Int())
	assert.Equal(t, int64(672), workflow.Get("41.inputs.height").Int())
	assert.NotZero(t, workflow.Get("44.inputs.seed").Int())
	assert.Equal(t, "bookgame", gjson.Get(body, "client_id").String())
}

func TestComfyGenerateRetriesThrottledSubmit(t *testing.T) {
	var submits atomic.Int64
	artifact := pngBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		if submits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"prompt_id":"job-2"}`))
	})
	mux.HandleFunc("/history/job-2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"job-2":{"outputs":{"9":{"images":[{"filename":"out.png","subfolder":"","type":"output"}]}}}}`))
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		w.Write(artifact)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := image.NewComfyClient(testRunner(), image.ComfyOptions{
		BaseURL:      srv.URL,
		WorkflowPath: writeWorkflow(t),
		Width:        896,
		Height:       672,
		Timeout:      10 * time.Second,
		OutputDir:    t.TempDir(),
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	url, err := client.Generate(context.Background(), "城门", "req-2")
	require.NoError(t, err)
	assert.NotEmpty(t, url)
	assert.Equal(t, int64(2), submits.Load())
}

func TestComfyGenerateTimesOutWithoutResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prompt_id":"job-3"}`))
	})
	mux.HandleFunc("/history/job-3", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`)) // never ready
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := image.NewComfyClient(testRunner(), image.ComfyOptions{
		BaseURL:      srv.URL,
		WorkflowPath: writeWorkflow(t),
		Width:        896,
		Height:       672,
		Timeout:      100 * time.Millisecond,
		OutputDir:    t.TempDir(),
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "城门", "req-3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNewComfyClientRejectsMissingWorkflow(t *testing.T) {
	_, err := image.NewComfyClient(testRunner(), image.ComfyOptions{
		BaseURL:      "http://localhost:8188",
		WorkflowPath: filepath.Join(t.TempDir(), "missing.json"),
		OutputDir:    t.TempDir(),
	})
	require.Error(t, err)
}
