// Package llm provides a provider-agnostic LLM client with tier-based model
// selection, retry with exponential backoff, and call-cost accounting.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/curatorhq/curator/model"
	"github.com/google/uuid"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// charsPerToken approximates the GPT tokenizer ratio for cost estimation.
const charsPerToken = 4

// Client is a provider-agnostic LLM client.
type Client struct {
	registry    *model.Registry
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Task identifies the calling activity kind; it selects the default
	// tier when Tier is empty.
	Task model.Task

	// Tier overrides the task's default tier.
	Tier model.Tier

	// BudgetLimit caps the estimated USD cost of the call. When set, the
	// highest-quality tier that fits is chosen instead of the default.
	BudgetLimit float64

	// Messages is the chat history to send.
	Messages []Message

	// Temperature overrides the tier temperature when non-nil.
	Temperature *float64

	// MaxTokens overrides the tier completion cap when positive.
	MaxTokens int
}

// TokenUsage represents token consumption for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CallMeta records the tier, usage, and estimated cost of a completed call.
// Activities attach it to their output metadata.
type CallMeta struct {
	Tier          model.Tier `json:"tier"`
	Model         string     `json:"model"`
	TotalTokens   int        `json:"total_tokens"`
	EstimatedCost float64    `json:"estimated_cost"`
}

// Response contains the completion result.
type Response struct {
	// RequestID uniquely identifies this call.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the model that actually served the call.
	Model string

	// Usage contains token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string

	// Meta carries tier and cost accounting.
	Meta CallMeta
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) { client.retryConfig = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) { client.logger = logger }
}

// NewClient creates a new LLM client backed by a tier registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:    registry,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // allow time for slow completions
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a completion request, selecting a tier, retrying transient
// failures, and recording cost metadata on the response.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	promptTokens := estimatePromptTokens(req.Messages)

	tier := req.Tier
	if tier == "" {
		tier = model.DefaultTier(req.Task)
	}
	if req.BudgetLimit > 0 {
		selected, ok := c.registry.SelectForBudget(req.Task, req.BudgetLimit, promptTokens)
		if !ok {
			return nil, NewFatalError(ErrBudgetExceeded)
		}
		tier = selected
	}

	spec, endpoint, err := c.registry.Resolve(tier)
	if err != nil {
		return nil, fmt.Errorf("resolve tier: %w", err)
	}

	provider := GetProvider(endpoint.Provider)
	if provider == nil {
		return nil, fmt.Errorf("no provider registered for %q", endpoint.Provider)
	}

	temperature := req.Temperature
	if temperature == nil {
		temperature = spec.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = spec.MaxTokens
	}

	requestID := uuid.New().String()

	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.retryConfig.backoffFor(attempt - 1)
			c.logger.Debug("Retrying LLM call",
				"attempt", attempt+1,
				"backoff", backoff,
				"model", endpoint.Model)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.callEndpoint(ctx, provider, endpoint, req.Messages, temperature, maxTokens)
		if err == nil {
			resp.RequestID = requestID
			resp.Meta = CallMeta{
				Tier:          tier,
				Model:         resp.Model,
				TotalTokens:   resp.Usage.TotalTokens,
				EstimatedCost: float64(resp.Usage.TotalTokens) / 1000 * spec.CostPer1K,
			}
			return resp, nil
		}

		lastErr = err
		if IsFatal(err) {
			return nil, err
		}
		c.logger.Warn("LLM call failed",
			"model", endpoint.Model,
			"provider", endpoint.Provider,
			"attempt", attempt+1,
			"error", err)
	}

	return nil, fmt.Errorf("llm call exhausted %d attempts: %w", c.retryConfig.MaxAttempts, lastErr)
}

// callEndpoint performs one HTTP round trip against a provider endpoint.
func (c *Client) callEndpoint(ctx context.Context, provider Provider, endpoint model.Endpoint,
	messages []Message, temperature *float64, maxTokens int) (*Response, error) {

	body, err := provider.BuildRequestBody(endpoint.Model, messages, temperature, maxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request: %w", err))
	}

	url := provider.BuildURL(endpoint.URL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("send request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("endpoint returned %d: %s", httpResp.StatusCode, truncate(string(respBody), 500))
		if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
			return nil, NewTransientError(err)
		}
		return nil, NewFatalError(err)
	}

	resp, err := provider.ParseResponse(respBody, endpoint.Model)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("parse response: %w", err))
	}
	return resp, nil
}

func estimatePromptTokens(messages []Message) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars / charsPerToken
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
