package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/curatorhq/curator/llm"
	_ "github.com/curatorhq/curator/llm/providers" // register providers
	"github.com/curatorhq/curator/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(url string) *model.Registry {
	return model.NewRegistry(
		map[model.Tier]model.TierSpec{
			model.TierBalanced:  {Endpoint: "test-model", MaxTokens: 512, CostPer1K: 0.01},
			model.TierFastCheap: {Endpoint: "test-model", MaxTokens: 256, CostPer1K: 0.001},
		},
		map[string]model.Endpoint{
			"test-model": {Provider: "ollama", URL: url, Model: "test-model"},
		},
	)
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-123",
		"model": "test-model",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     10,
			"completion_tokens": 8,
			"total_tokens":      18,
		},
	}
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("Hello!"))
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	resp, err := client.Complete(context.Background(), llm.Request{
		Task:     model.TaskAnalysis,
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Content)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.RequestID)

	// Cost accounting: 18 tokens at $0.01/1k on the balanced tier.
	assert.Equal(t, model.TierBalanced, resp.Meta.Tier)
	assert.InDelta(t, 0.00018, resp.Meta.EstimatedCost, 1e-9)
}

func TestClient_Complete_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionResponse("recovered"))
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL), llm.WithRetryConfig(llm.RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        time.Millisecond,
	}))

	resp, err := client.Complete(context.Background(), llm.Request{
		Task:     model.TaskAnalysis,
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Complete_FatalNoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := llm.NewClient(testRegistry(server.URL))

	_, err := client.Complete(context.Background(), llm.Request{
		Task:     model.TaskAnalysis,
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Complete_BudgetExceeded(t *testing.T) {
	client := llm.NewClient(model.NewRegistry(
		map[model.Tier]model.TierSpec{
			model.TierBalanced: {Endpoint: "m", MaxTokens: 4096, CostPer1K: 10},
		},
		map[string]model.Endpoint{"m": {Provider: "ollama", Model: "m"}},
	))

	_, err := client.Complete(context.Background(), llm.Request{
		Task:        model.TaskAnalysis,
		BudgetLimit: 0.0001,
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBudgetExceeded)
}

func TestClient_Complete_EmptyMessages(t *testing.T) {
	client := llm.NewClient(model.NewDefaultRegistry())
	_, err := client.Complete(context.Background(), llm.Request{Task: model.TaskAnalysis})
	assert.Error(t, err)
}

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		// Return entries out of order; Embed must re-index them.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float32{0.3, 0.4}},
				{"index": 0, "embedding": []float32{0.1, 0.2}},
			},
			"usage": map[string]int{"prompt_tokens": 4, "total_tokens": 4},
		})
	}))
	defer server.Close()

	client := llm.NewClient(model.NewDefaultRegistry())
	vectors, err := client.Embed(context.Background(), llm.EmbeddingConfig{
		URL:   server.URL,
		Model: "test-embed",
	}, []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestClient_Embed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"index": 0, "embedding": []float32{0.1}}},
		})
	}))
	defer server.Close()

	client := llm.NewClient(model.NewDefaultRegistry())
	_, err := client.Embed(context.Background(), llm.EmbeddingConfig{URL: server.URL, Model: "m"},
		[]string{"a", "b"})
	assert.Error(t, err)
}
