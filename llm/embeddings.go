package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// EmbeddingConfig points the client at an OpenAI-compatible /embeddings
// endpoint.
type EmbeddingConfig struct {
	// URL is the API base URL (default: https://api.openai.com/v1).
	URL string `yaml:"url"`

	// Model is the embedding model identifier.
	Model string `yaml:"model"`
}

// DefaultEmbeddingConfig returns the stock OpenAI embedding endpoint.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		URL:   "https://api.openai.com/v1",
		Model: "text-embedding-3-small",
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates one embedding vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, cfg EmbeddingConfig, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if cfg.URL == "" {
		cfg = DefaultEmbeddingConfig()
	}

	body, err := json.Marshal(embeddingRequest{Model: cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	url := strings.TrimSuffix(cfg.URL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("send embedding request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read embedding response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, NewTransientError(err)
		}
		return nil, NewFatalError(err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewTransientError(fmt.Errorf("parse embedding response: %w", err))
	}
	if len(parsed.Data) != len(texts) {
		return nil, NewTransientError(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data)))
	}

	// The API may return entries out of order; index them explicitly.
	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, NewTransientError(fmt.Errorf("embedding index %d out of range", d.Index))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
