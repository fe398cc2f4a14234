// Package embedding provides the embed(texts) -> [][]float64 contract used
// by the clustering and retrieval components. No embedding-provider Go SDK
// exists anywhere in the retrieval pack (the original talks to OpenAI,
// Sentence-Transformers or Ollama over HTTP), so this is a thin net/http
// client grounded on original_source/app/services/embedding.py's remote
// provider shape.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider embeds a batch of texts into vectors and identifies itself so
// vector-store collections can be namespaced per provider/model.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// ID is a short identity string (e.g. model name) used to suffix
	// vector-store collection names and avoid dimension mixing.
	ID() string
}

// RemoteProvider calls an HTTP embedding endpoint (OpenAI-compatible or a
// custom sidecar) with {"model","input":[...]}  -> {"data":[{"embedding":[...]}]}.
type RemoteProvider struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewRemoteProvider builds a client against an OpenAI-compatible embeddings
// endpoint (baseURL + "/embeddings").
func NewRemoteProvider(baseURL, apiKey, model string) *RemoteProvider {
	return &RemoteProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ID returns the configured model name, used to namespace collections.
func (p *RemoteProvider) ID() string {
	return p.model
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed calls the remote endpoint once per batch of up to len(texts) items.
func (p *RemoteProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embed endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	vectors := make([][]float64, len(out.Data))
	for i, d := range out.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
