// Package client is the calling side of the turn protocol: an HTTP API
// client, a turn controller that serializes and deduplicates requests, and a
// presentation sequencer for the staged reveal of results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Javier1112/BookGame/pkg/game"
)

const playTurnEndpoint = "/api/play-turn"

// StatusError carries the HTTP status alongside the server's plain-text
// reason so callers can tell throttling apart from other failures.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// API calls the turn orchestrator's HTTP surface.
type API struct {
	httpClient *http.Client
	baseURL    string
}

func NewAPI(baseURL string) *API {
	return &API{
		httpClient: &http.Client{},
		baseURL:    normalizeBaseURL(baseURL),
	}
}

// PlayTurn posts the request and decodes the turn response. Non-200 replies
// become StatusError with the server's plain-text reason.
func (a *API) PlayTurn(ctx context.Context, req game.TurnRequest) (*game.TurnResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+playTurnEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(text))}
	}

	var turn game.TurnResponse
	if err := json.NewDecoder(resp.Body).Decode(&turn); err != nil {
		return nil, fmt.Errorf("failed to decode turn response: %w", err)
	}
	return &turn, nil
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "http://" + trimmed
}
