package model

import (
	"fmt"
	"sync"
)

// TierSpec maps a tier to a concrete model invocation profile.
type TierSpec struct {
	// Endpoint names the endpoint in the registry's endpoint table.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Temperature for this tier. nil uses the provider default.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`

	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// CostPer1K is the estimated USD cost per 1000 tokens.
	CostPer1K float64 `json:"cost_per_1k" yaml:"cost_per_1k"`
}

// Endpoint describes an available model endpoint.
type Endpoint struct {
	// Provider is the adapter name (anthropic, openai, ollama).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the API base URL (empty for provider default).
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model" yaml:"model"`
}

// Registry resolves tiers to endpoints and enforces call budgets.
type Registry struct {
	mu        sync.RWMutex
	tiers     map[Tier]TierSpec
	endpoints map[string]Endpoint
}

// NewRegistry creates a registry from explicit tier and endpoint tables.
func NewRegistry(tiers map[Tier]TierSpec, endpoints map[string]Endpoint) *Registry {
	return &Registry{tiers: tiers, endpoints: endpoints}
}

// NewDefaultRegistry creates a registry with a usable default tier table.
func NewDefaultRegistry() *Registry {
	temp := func(v float64) *float64 { return &v }
	return &Registry{
		tiers: map[Tier]TierSpec{
			TierUltraQuality: {Endpoint: "claude-opus", Temperature: temp(0.3), MaxTokens: 8192, CostPer1K: 0.075},
			TierDeep:         {Endpoint: "claude-sonnet", Temperature: temp(0.3), MaxTokens: 8192, CostPer1K: 0.015},
			TierBalanced:     {Endpoint: "claude-sonnet", Temperature: temp(0.2), MaxTokens: 4096, CostPer1K: 0.015},
			TierFastCheap:    {Endpoint: "claude-haiku", Temperature: temp(0.2), MaxTokens: 4096, CostPer1K: 0.004},
			TierUltraFast:    {Endpoint: "qwen", Temperature: temp(0.1), MaxTokens: 2048, CostPer1K: 0},
			TierUltraCheap:   {Endpoint: "qwen", Temperature: temp(0.1), MaxTokens: 1024, CostPer1K: 0},
		},
		endpoints: map[string]Endpoint{
			"claude-opus":   {Provider: "anthropic", Model: "claude-opus-4-20250514"},
			"claude-sonnet": {Provider: "anthropic", Model: "claude-sonnet-4-20250514"},
			"claude-haiku":  {Provider: "anthropic", Model: "claude-haiku-3-5-20241022"},
			"qwen":          {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "qwen2.5:14b"},
		},
	}
}

// Resolve returns the spec and endpoint for a tier.
func (r *Registry) Resolve(tier Tier) (TierSpec, Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.tiers[tier]
	if !ok {
		return TierSpec{}, Endpoint{}, fmt.Errorf("no spec for tier %q", tier)
	}
	ep, ok := r.endpoints[spec.Endpoint]
	if !ok {
		return TierSpec{}, Endpoint{}, fmt.Errorf("tier %q references unknown endpoint %q", tier, spec.Endpoint)
	}
	return spec, ep, nil
}

// SetTier overrides one tier's spec.
func (r *Registry) SetTier(tier Tier, spec TierSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tiers[tier] = spec
}

// SetEndpoint registers or replaces an endpoint.
func (r *Registry) SetEndpoint(name string, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = ep
}

// EstimateCost estimates the USD cost of one call at a tier, assuming the
// full completion budget is used on top of the prompt.
func (r *Registry) EstimateCost(tier Tier, promptTokens int) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.tiers[tier]
	if !ok {
		return 0, fmt.Errorf("no spec for tier %q", tier)
	}
	total := promptTokens + spec.MaxTokens
	return float64(total) / 1000 * spec.CostPer1K, nil
}

// SelectForBudget picks the highest-quality tier whose estimated cost fits
// the budget. A zero budget means unconstrained and returns the task default.
// Returns false when no tier fits.
func (r *Registry) SelectForBudget(task Task, budget float64, promptTokens int) (Tier, bool) {
	if budget <= 0 {
		return DefaultTier(task), true
	}
	for _, tier := range qualityOrder {
		cost, err := r.EstimateCost(tier, promptTokens)
		if err != nil {
			continue
		}
		if cost <= budget {
			return tier, true
		}
	}
	return "", false
}
