package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierDeep, ParseTier("deep"))
	assert.Equal(t, TierUltraQuality, ParseTier("ultra_quality"))
	assert.Equal(t, Tier(""), ParseTier("premium"))
}

func TestDefaultTier(t *testing.T) {
	assert.Equal(t, TierDeep, DefaultTier(TaskResearch))
	assert.Equal(t, TierBalanced, DefaultTier(TaskAnalysis))
	assert.Equal(t, TierFastCheap, DefaultTier(TaskQuestions))
	assert.Equal(t, TierBalanced, DefaultTier(Task("unknown")))
}

func TestRegistryResolve(t *testing.T) {
	r := NewDefaultRegistry()

	spec, ep, err := r.Resolve(TierDeep)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", ep.Provider)
	assert.Equal(t, 8192, spec.MaxTokens)

	_, _, err = r.Resolve(Tier("bogus"))
	assert.Error(t, err)
}

func TestRegistryResolveUnknownEndpoint(t *testing.T) {
	r := NewRegistry(
		map[Tier]TierSpec{TierBalanced: {Endpoint: "missing"}},
		map[string]Endpoint{},
	)
	_, _, err := r.Resolve(TierBalanced)
	assert.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	r := NewRegistry(
		map[Tier]TierSpec{TierBalanced: {Endpoint: "m", MaxTokens: 1000, CostPer1K: 0.01}},
		map[string]Endpoint{"m": {Provider: "openai", Model: "gpt"}},
	)

	cost, err := r.EstimateCost(TierBalanced, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, cost, 1e-9)
}

func TestSelectForBudget(t *testing.T) {
	r := NewDefaultRegistry()

	// Unconstrained returns the task default.
	tier, ok := r.SelectForBudget(TaskResearch, 0, 500)
	require.True(t, ok)
	assert.Equal(t, TierDeep, tier)

	// A generous budget buys the top tier.
	tier, ok = r.SelectForBudget(TaskResearch, 10, 500)
	require.True(t, ok)
	assert.Equal(t, TierUltraQuality, tier)

	// A tight budget degrades to a cheaper tier but still succeeds
	// (the free local tiers always fit).
	tier, ok = r.SelectForBudget(TaskResearch, 0.001, 500)
	require.True(t, ok)
	assert.Contains(t, []Tier{TierUltraFast, TierUltraCheap}, tier)
}

func TestSelectForBudgetNoneFits(t *testing.T) {
	r := NewRegistry(
		map[Tier]TierSpec{TierBalanced: {Endpoint: "m", MaxTokens: 4096, CostPer1K: 1.0}},
		map[string]Endpoint{"m": {Provider: "openai", Model: "gpt"}},
	)
	_, ok := r.SelectForBudget(TaskAnalysis, 0.0001, 500)
	assert.False(t, ok)
}
