// Package llmprovider implements the chat_json(system, user, temperature?)
// contract: strict JSON output, with {error, raw} returned instead of an
// error when the provider call or JSON decode fails. No LLM SDK (OpenAI,
// Anthropic, Ollama) exists anywhere in the retrieval pack, so this is a
// thin net/http client against an OpenAI-compatible JSON-mode chat
// completions endpoint, grounded on
// original_source/app/services/llm_service.py's chat_json shape.
package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Provider issues structured-JSON chat completions.
type Provider interface {
	ChatJSON(ctx context.Context, system, user string, temperature float64) map[string]any
}

// RemoteProvider calls an OpenAI-compatible /chat/completions endpoint with
// response_format json_object.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewRemoteProvider builds a client against baseURL + "/chat/completions".
func NewRemoteProvider(baseURL, apiKey, model string) *RemoteProvider {
	return &RemoteProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatJSON sends system/user messages with JSON-mode enabled and parses the
// response content as a JSON object. On any failure (transport, non-2xx,
// malformed JSON) it returns {"error": ..., "raw": ...} rather than
// propagating an error, matching the external contract in full.
func (p *RemoteProvider) ChatJSON(ctx context.Context, system, user string, temperature float64) map[string]any {
	reqBody := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    temperature,
		ResponseFormat: map[string]any{"type": "json_object"},
	}

	content, err := p.call(ctx, reqBody)
	if err != nil {
		slog.Error("llm chat failed", "model", p.model, "error", err)
		return map[string]any{"error": "llm call failed", "raw": err.Error()}
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		slog.Error("llm returned non-JSON content", "model", p.model, "error", err)
		return map[string]any{"error": "llm returned invalid json", "raw": content}
	}
	return out
}

func (p *RemoteProvider) call(ctx context.Context, reqBody chatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	var resp *http.Response
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if retryErr := backoff.Retry(func() error {
		if req.GetBody != nil {
			b, gbErr := req.GetBody()
			if gbErr != nil {
				return backoff.Permanent(gbErr)
			}
			req.Body = b
		}
		r, doErr := p.http.Do(req)
		if doErr != nil {
			return doErr
		}
		resp = r
		return nil
	}, bo); retryErr != nil {
		return "", fmt.Errorf("chat request: %w", retryErr)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response had no choices")
	}
	content := parsed.Choices[0].Message.Content
	if content == "" {
		content = "{}"
	}
	return content, nil
}
