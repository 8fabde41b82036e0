package activities

import (
	"fmt"
	"strings"
)

// buildResearchPrompt asks the model to research a proposed domain and
// return the structured result schema verbatim.
func buildResearchPrompt(in ResearchInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the knowledge domain %q.\n\n", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n\n", in.Description)
	}
	if len(in.InitialTopics) > 0 {
		fmt.Fprintf(&b, "Starting topics: %s\n", strings.Join(in.InitialTopics, ", "))
	}
	if len(in.TargetAudience) > 0 {
		fmt.Fprintf(&b, "Target audience: %s\n", strings.Join(in.TargetAudience, ", "))
	}
	if in.ResearchFocus != "" {
		fmt.Fprintf(&b, "Research focus: %s\n", in.ResearchFocus)
	}
	if in.ResearchDepth != "" {
		fmt.Fprintf(&b, "Research depth: %s\n", in.ResearchDepth)
	}

	var depth []string
	if in.IncludeHistorical {
		depth = append(depth, "historical context")
	}
	if in.IncludeTechnical {
		depth = append(depth, "technical depth")
	}
	if in.IncludePractical {
		depth = append(depth, "practical applications")
	}
	if len(depth) > 0 {
		fmt.Fprintf(&b, "Cover: %s.\n", strings.Join(depth, ", "))
	}

	b.WriteString(`
Identify the core topics of this domain (at least 10 for a substantial
domain), where knowledge gaps typically appear, and which sources are
authoritative.

Respond with only a JSON object:
{
  "summary": "two-paragraph overview of the domain",
  "topics": ["topic", ...],
  "quality_criteria": {
    "min_length": 1000,
    "quality_threshold": 7.0,
    "required_sections": ["section", ...]
  },
  "knowledge_gaps": ["gap", ...],
  "sources": ["source", ...],
  "recommendations": ["recommendation", ...]
}`)
	return b.String()
}

// buildAnalysisPrompt turns raw research into a domain configuration.
func buildAnalysisPrompt(domainTitle string, research ResearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are configuring the knowledge domain %q.\n\n", domainTitle)
	fmt.Fprintf(&b, "Research summary:\n%s\n\n", research.Summary)
	fmt.Fprintf(&b, "Candidate topics: %s\n", strings.Join(research.Topics, ", "))
	if len(research.KnowledgeGaps) > 0 {
		fmt.Fprintf(&b, "Known gaps: %s\n", strings.Join(research.KnowledgeGaps, ", "))
	}

	b.WriteString(`
Produce the final domain configuration. Keep topics specific enough to
score document relevance against. Respond with only a JSON object:
{
  "topics": ["topic", ...],
  "quality_criteria": {
    "min_length": 1000,
    "quality_threshold": 7.0,
    "required_sections": ["section", ...]
  },
  "search_attributes": {"key": "value", ...},
  "bootstrap_prompt": "system prompt for relevance assessment in this domain",
  "research_steps": ["step", ...],
  "target_audience": ["audience", ...]
}`)
	return b.String()
}

// buildQuestionsPrompt asks for example questions a domain should answer.
func buildQuestionsPrompt(domainTitle, description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate 8 example questions that the knowledge domain %q should be able to answer.\n", domainTitle)
	if description != "" {
		fmt.Fprintf(&b, "Domain description: %s\n", description)
	}
	b.WriteString(`
Mix difficulties and categories. Respond with only a JSON array:
[
  {
    "question": "...",
    "category": "factual|conceptual|practical|historical",
    "difficulty": "basic|intermediate|advanced",
    "relevance_score": 8.5
  }
]`)
	return b.String()
}

// buildRelevancePrompt scores a document against a domain's criteria.
func buildRelevancePrompt(in AssessInput, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess whether the following document belongs in the knowledge domain %q.\n\n", in.DomainTitle)
	if len(in.Topics) > 0 {
		fmt.Fprintf(&b, "Domain topics: %s\n", strings.Join(in.Topics, ", "))
	}
	fmt.Fprintf(&b, "Quality bar: minimum length %d characters, threshold %.1f/10.\n",
		in.Criteria.MinLength, in.Criteria.QualityThreshold)
	if len(in.Criteria.RequiredSections) > 0 {
		fmt.Fprintf(&b, "Required sections: %s\n", strings.Join(in.Criteria.RequiredSections, ", "))
	}

	b.WriteString(`
Score relevance on a 0-10 scale where 10 means essential domain knowledge.
Respond with only a JSON object:
{
  "relevance_score": 7.5,
  "is_relevant": true,
  "summary": "what the document covers",
  "key_points": ["point", ...],
  "topics": ["covered topic", ...],
  "quality_indicators": {"depth": 0.8, "accuracy": 0.9, "clarity": 0.7},
  "rejection_reason": "only when not relevant"
}

Document:
---
`)
	b.WriteString(text)
	b.WriteString("\n---")
	return b.String()
}
