// Package model provides tier-based LLM model selection. A tier is a named
// cost/quality profile; activities pick a tier per call (or accept the task
// default) and the registry resolves it to a concrete endpoint.
package model

// Tier is a named LLM cost/quality profile.
type Tier string

const (
	TierFastCheap    Tier = "fast_cheap"
	TierBalanced     Tier = "balanced"
	TierDeep         Tier = "deep"
	TierUltraFast    Tier = "ultra_fast"
	TierUltraCheap   Tier = "ultra_cheap"
	TierUltraQuality Tier = "ultra_quality"
)

// qualityOrder ranks tiers from highest to lowest quality. Budget-constrained
// selection walks this order and takes the first tier that fits.
var qualityOrder = []Tier{
	TierUltraQuality,
	TierDeep,
	TierBalanced,
	TierFastCheap,
	TierUltraFast,
	TierUltraCheap,
}

// ParseTier returns the tier for a string, or "" if unknown.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierFastCheap, TierBalanced, TierDeep, TierUltraFast, TierUltraCheap, TierUltraQuality:
		return Tier(s)
	}
	return ""
}

// Task identifies an LLM-backed activity kind for default-tier lookup.
type Task string

const (
	TaskResearch  Task = "research"
	TaskAnalysis  Task = "analysis"
	TaskQuestions Task = "questions"
	TaskRelevance Task = "relevance"
)

// defaultTiers is the fixed task-to-tier mapping.
var defaultTiers = map[Task]Tier{
	TaskResearch:  TierDeep,
	TaskAnalysis:  TierBalanced,
	TaskQuestions: TierFastCheap,
	TaskRelevance: TierBalanced,
}

// DefaultTier returns the default tier for a task, falling back to balanced
// for unknown tasks.
func DefaultTier(task Task) Tier {
	if t, ok := defaultTiers[task]; ok {
		return t
	}
	return TierBalanced
}
