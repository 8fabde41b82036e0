package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/llm"
	"github.com/curatorhq/curator/model"
)

// ResearchInput describes the domain to research.
type ResearchInput struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	InitialTopics     []string `json:"initial_topics,omitempty"`
	TargetAudience    []string `json:"target_audience,omitempty"`
	ResearchFocus     string   `json:"research_focus,omitempty"`
	ResearchDepth     string   `json:"research_depth,omitempty"`
	IncludeHistorical bool     `json:"include_historical"`
	IncludeTechnical  bool     `json:"include_technical"`
	IncludePractical  bool     `json:"include_practical"`

	Tier        model.Tier `json:"tier,omitempty"`
	BudgetLimit float64    `json:"budget_limit,omitempty"`
}

// ResearchResult is the schema-validated research output.
type ResearchResult struct {
	Summary         string                 `json:"summary"`
	Topics          []string               `json:"topics"`
	QualityCriteria domain.QualityCriteria `json:"quality_criteria"`
	KnowledgeGaps   []string               `json:"knowledge_gaps,omitempty"`
	Sources         []string               `json:"sources,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
	Meta            llm.CallMeta           `json:"meta"`
}

// ResearchDomain asks the model to research a proposed domain.
func (a *Activities) ResearchDomain(ctx context.Context, in ResearchInput) (out *ResearchResult, err error) {
	defer func() { a.observe(NameResearchDomain, err) }()

	resp, err := a.LLM.Complete(ctx, llm.Request{
		Task:        model.TaskResearch,
		Tier:        in.Tier,
		BudgetLimit: in.BudgetLimit,
		Messages: []llm.Message{
			{Role: "system", Content: "You are a domain research assistant. Respond with valid JSON only."},
			{Role: "user", Content: buildResearchPrompt(in)},
		},
	})
	if err != nil {
		return nil, classifyLLMError("research domain", err)
	}

	var result ResearchResult
	if err := decodeObject(resp.Content, &result); err != nil {
		return nil, err
	}
	if result.Summary == "" || len(result.Topics) == 0 {
		return nil, malformedErr("research output missing summary or topics", nil)
	}
	if err := result.QualityCriteria.Validate(); err != nil {
		return nil, malformedErr("research quality criteria out of range", err)
	}
	result.Topics = domain.MergeTopics(in.InitialTopics, result.Topics)
	result.Meta = resp.Meta
	return &result, nil
}

// AnalyzeInput carries research output into configuration analysis.
type AnalyzeInput struct {
	DomainTitle string         `json:"domain_title"`
	Research    ResearchResult `json:"research"`
	Tier        model.Tier     `json:"tier,omitempty"`
}

// AnalysisResult is the draft domain configuration.
type AnalysisResult struct {
	Topics           []string               `json:"topics"`
	QualityCriteria  domain.QualityCriteria `json:"quality_criteria"`
	SearchAttributes map[string]string      `json:"search_attributes,omitempty"`
	BootstrapPrompt  string                 `json:"bootstrap_prompt"`
	ResearchSteps    []string               `json:"research_steps,omitempty"`
	TargetAudience   []string               `json:"target_audience,omitempty"`
	Meta             llm.CallMeta           `json:"meta"`
}

// AnalyzeResearch turns research output into a domain configuration draft.
func (a *Activities) AnalyzeResearch(ctx context.Context, in AnalyzeInput) (out *AnalysisResult, err error) {
	defer func() { a.observe(NameAnalyzeResearch, err) }()

	resp, err := a.LLM.Complete(ctx, llm.Request{
		Task: model.TaskAnalysis,
		Tier: in.Tier,
		Messages: []llm.Message{
			{Role: "system", Content: "You configure knowledge domains. Respond with valid JSON only."},
			{Role: "user", Content: buildAnalysisPrompt(in.DomainTitle, in.Research)},
		},
	})
	if err != nil {
		return nil, classifyLLMError("analyze research", err)
	}

	var result AnalysisResult
	if err := decodeObject(resp.Content, &result); err != nil {
		return nil, err
	}
	if len(result.Topics) == 0 {
		return nil, malformedErr("analysis output has no topics", nil)
	}
	if err := result.QualityCriteria.Validate(); err != nil {
		return nil, malformedErr("analysis quality criteria out of range", err)
	}
	result.Meta = resp.Meta
	return &result, nil
}

// QuestionsInput names the domain to generate example questions for.
type QuestionsInput struct {
	DomainTitle string     `json:"domain_title"`
	Description string     `json:"description"`
	Tier        model.Tier `json:"tier,omitempty"`
}

// ExampleQuestion is one generated question with its ranking fields.
type ExampleQuestion struct {
	Question       string  `json:"question"`
	Category       string  `json:"category"`
	Difficulty     string  `json:"difficulty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// QuestionsResult is the ordered question list plus cost metadata.
type QuestionsResult struct {
	Questions []ExampleQuestion `json:"questions"`
	Meta      llm.CallMeta      `json:"meta"`
}

// GenerateExampleQuestions produces questions the finished domain should be
// able to answer. Owners rank them during review.
func (a *Activities) GenerateExampleQuestions(ctx context.Context, in QuestionsInput) (out *QuestionsResult, err error) {
	defer func() { a.observe(NameGenerateExampleQuestions, err) }()

	resp, err := a.LLM.Complete(ctx, llm.Request{
		Task: model.TaskQuestions,
		Tier: in.Tier,
		Messages: []llm.Message{
			{Role: "system", Content: "You write example questions for knowledge domains. Respond with valid JSON only."},
			{Role: "user", Content: buildQuestionsPrompt(in.DomainTitle, in.Description)},
		},
	})
	if err != nil {
		return nil, classifyLLMError("generate questions", err)
	}

	raw := llm.ExtractArray(resp.Content)
	if raw == "" {
		return nil, malformedErr("no JSON array in model output", nil)
	}
	var questions []ExampleQuestion
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, malformedErr("question list does not match schema", err)
	}
	for i, q := range questions {
		if q.Question == "" {
			return nil, malformedErr(fmt.Sprintf("question %d is empty", i), nil)
		}
	}
	return &QuestionsResult{Questions: questions, Meta: resp.Meta}, nil
}

// IndexDomainInput is the approved domain snapshot to index.
type IndexDomainInput struct {
	Domain  domain.Domain `json:"domain"`
	Summary string        `json:"summary"`
}

// IndexDomainResult reports where the domain landed.
type IndexDomainResult struct {
	VectorID     string `json:"vector_id"`
	GraphUpdated bool   `json:"graph_updated"`
}

// IndexDomain embeds the domain summary, writes it to the vector store, and
// merges the domain into the graph. Safe to re-run: both stores upsert on
// deterministic ids.
func (a *Activities) IndexDomain(ctx context.Context, in IndexDomainInput) (out *IndexDomainResult, err error) {
	defer func() { a.observe(NameIndexDomain, err) }()

	vecs, err := a.LLM.Embed(ctx, a.Embedding, []string{in.Summary})
	if err != nil {
		return nil, upstreamErr("embed domain summary", err)
	}
	if len(vecs) != 1 {
		return nil, upstreamErr(fmt.Sprintf("expected 1 embedding, got %d", len(vecs)), nil)
	}

	vectorID, err := a.Vector.IndexDomain(ctx, &in.Domain, in.Summary, vecs[0])
	if err != nil {
		return nil, storeErr("index domain in vector store", err)
	}
	if err := a.Graph.UpsertDomain(ctx, &in.Domain); err != nil {
		return nil, storeErr("upsert domain in graph", err)
	}

	a.Logger.Info("indexed domain", "domain_id", in.Domain.ID, "vector_id", vectorID)
	return &IndexDomainResult{VectorID: vectorID, GraphUpdated: true}, nil
}

// decodeObject extracts and unmarshals a JSON object from model output.
func decodeObject(content string, out any) error {
	raw := llm.ExtractObject(content)
	if raw == "" {
		return malformedErr("no JSON object in model output", nil)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return malformedErr("model output does not match schema", err)
	}
	return nil
}

// classifyLLMError maps client errors to workflow-visible types.
func classifyLLMError(op string, err error) error {
	if errors.Is(err, llm.ErrBudgetExceeded) {
		return budgetErr(op+": budget exceeded", err)
	}
	return upstreamErr(op+": model call failed", err)
}
