package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/extract"
	"github.com/curatorhq/curator/llm"
	"github.com/curatorhq/curator/model"
	"github.com/curatorhq/curator/vector"
)

// assessTextLimit caps how much document text goes into the scoring prompt.
const assessTextLimit = 12000

// AssessInput scores one document against its domain.
type AssessInput struct {
	DocumentID  string                 `json:"document_id"`
	FileRef     string                 `json:"file_ref"`
	DomainTitle string                 `json:"domain_title"`
	Topics      []string               `json:"topics,omitempty"`
	Criteria    domain.QualityCriteria `json:"criteria"`
	Tier        model.Tier             `json:"tier,omitempty"`
}

// AssessResult is the schema-validated relevance assessment.
type AssessResult struct {
	RelevanceScore    float64            `json:"relevance_score"`
	IsRelevant        bool               `json:"is_relevant"`
	Summary           string             `json:"summary"`
	KeyPoints         []string           `json:"key_points,omitempty"`
	Topics            []string           `json:"topics,omitempty"`
	QualityIndicators map[string]float64 `json:"quality_indicators,omitempty"`
	RejectionReason   string             `json:"rejection_reason,omitempty"`
	Meta              llm.CallMeta       `json:"meta"`
}

// AssessDocumentRelevance extracts the document text and asks the model to
// score its fit for the domain.
func (a *Activities) AssessDocumentRelevance(ctx context.Context, in AssessInput) (out *AssessResult, err error) {
	defer func() { a.observe(NameAssessDocumentRelevance, err) }()

	content, err := a.Files.Fetch(ctx, in.FileRef)
	if err != nil {
		return nil, extractionErr("fetch document", err)
	}
	extracted, err := a.Extractor.Extract(in.FileRef, content)
	if err != nil {
		return nil, extractionErr("extract document text", err)
	}
	text := extracted.Text
	if len(text) > assessTextLimit {
		text = text[:assessTextLimit]
	}

	resp, err := a.LLM.Complete(ctx, llm.Request{
		Task: model.TaskRelevance,
		Tier: in.Tier,
		Messages: []llm.Message{
			{Role: "system", Content: "You assess document relevance for curated knowledge domains. Respond with valid JSON only."},
			{Role: "user", Content: buildRelevancePrompt(in, text)},
		},
	})
	if err != nil {
		return nil, classifyLLMError("assess relevance", err)
	}

	var result AssessResult
	if err := decodeObject(resp.Content, &result); err != nil {
		return nil, err
	}
	if result.RelevanceScore < 0 || result.RelevanceScore > 10 {
		return nil, malformedErr(fmt.Sprintf("relevance score %g out of range", result.RelevanceScore), nil)
	}
	if result.Summary == "" {
		return nil, malformedErr("assessment missing summary", nil)
	}
	result.Meta = resp.Meta
	return &result, nil
}

// ExtractInput names the file to extract.
type ExtractInput struct {
	FileRef string `json:"file_ref"`
}

// ExtractResult is the parsed, chunked document.
type ExtractResult struct {
	Text     string           `json:"text"`
	Chunks   []extract.Chunk  `json:"chunks"`
	Metadata extract.Metadata `json:"metadata"`
	Entities []string         `json:"entities,omitempty"`
	Topics   []string         `json:"topics,omitempty"`
}

// ExtractText parses the document into normalized text and chunks.
func (a *Activities) ExtractText(ctx context.Context, in ExtractInput) (out *ExtractResult, err error) {
	defer func() { a.observe(NameExtractText, err) }()

	content, err := a.Files.Fetch(ctx, in.FileRef)
	if err != nil {
		return nil, extractionErr("fetch document", err)
	}
	result, err := a.Extractor.Extract(in.FileRef, content)
	if err != nil {
		return nil, extractionErr("extract document text", err)
	}
	if len(result.Chunks) == 0 {
		return nil, extractionErr("document produced no chunks", nil)
	}
	return &ExtractResult{
		Text:     result.Text,
		Chunks:   result.Chunks,
		Metadata: result.Metadata,
		Entities: result.Entities,
		Topics:   result.Topics,
	}, nil
}

// EmbedInput carries the chunks to embed.
type EmbedInput struct {
	Chunks []extract.Chunk `json:"chunks"`
}

// EmbedResult holds one vector per chunk, in chunk order.
type EmbedResult struct {
	Vectors [][]float32 `json:"vectors"`
}

// GenerateEmbeddings embeds every chunk.
func (a *Activities) GenerateEmbeddings(ctx context.Context, in EmbedInput) (out *EmbedResult, err error) {
	defer func() { a.observe(NameGenerateEmbeddings, err) }()

	texts := make([]string, len(in.Chunks))
	for i, ch := range in.Chunks {
		texts[i] = ch.Content
	}
	vecs, err := a.LLM.Embed(ctx, a.Embedding, texts)
	if err != nil {
		return nil, upstreamErr("generate embeddings", err)
	}
	return &EmbedResult{Vectors: vecs}, nil
}

// IndexWeaviateInput pairs a document snapshot with its chunk embeddings.
type IndexWeaviateInput struct {
	Document domain.Document `json:"document"`
	Chunks   []extract.Chunk `json:"chunks"`
	Vectors  [][]float32     `json:"vectors"`
}

// IndexWeaviateResult reports the indexed object.
type IndexWeaviateResult struct {
	VectorID   string `json:"vector_id"`
	ChunkCount int    `json:"chunk_count"`
}

// IndexWeaviate writes the document chunks to the vector store.
func (a *Activities) IndexWeaviate(ctx context.Context, in IndexWeaviateInput) (out *IndexWeaviateResult, err error) {
	defer func() { a.observe(NameIndexWeaviate, err) }()

	if len(in.Chunks) != len(in.Vectors) {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("chunk/vector count mismatch: %d vs %d", len(in.Chunks), len(in.Vectors)),
			ErrTypeStoreUnavailable, nil)
	}
	chunks := make([]vector.Chunk, len(in.Chunks))
	for i, ch := range in.Chunks {
		chunks[i] = vector.Chunk{
			Index:   ch.Index,
			Section: ch.Section,
			Content: ch.Content,
			Vector:  in.Vectors[i],
		}
	}
	vectorID, err := a.Vector.IndexDocument(ctx, &in.Document, chunks)
	if err != nil {
		return nil, storeErr("index document chunks", err)
	}
	return &IndexWeaviateResult{VectorID: vectorID, ChunkCount: len(chunks)}, nil
}

// UpdateGraphInput carries the document and its extracted graph facts.
type UpdateGraphInput struct {
	Document domain.Document `json:"document"`
	Topics   []string        `json:"topics,omitempty"`
	Entities []string        `json:"entities,omitempty"`
}

// UpdateGraphResult reports the graph write.
type UpdateGraphResult struct {
	OK bool `json:"ok"`
}

// UpdateGraph merges the document into the knowledge graph.
func (a *Activities) UpdateGraph(ctx context.Context, in UpdateGraphInput) (out *UpdateGraphResult, err error) {
	defer func() { a.observe(NameUpdateGraph, err) }()

	if err := a.Graph.UpsertDocument(ctx, &in.Document, in.Entities, in.Topics); err != nil {
		return nil, storeErr("upsert document in graph", err)
	}
	return &UpdateGraphResult{OK: true}, nil
}

// NotifyInput describes the decision to report to a contributor.
type NotifyInput struct {
	ContributorID string `json:"contributor_id"`
	WorkflowID    string `json:"workflow_id"`
	Decision      string `json:"decision"`
	Reason        string `json:"reason,omitempty"`
}

// NotifyResult reports whether any delivery channel accepted the message.
type NotifyResult struct {
	Delivered bool `json:"delivered"`
}

// NotifyContributor informs the contributor of the decision. Sent as a
// status update; the workflow itself emits the single completion signal.
// Never fatal: failures are logged and reported in the result.
func (a *Activities) NotifyContributor(ctx context.Context, in NotifyInput) (*NotifyResult, error) {
	data := map[string]any{"status": in.Decision}
	if in.Reason != "" {
		data["message"] = in.Reason
	}
	_, err := a.Signals.Send(ctx, in.ContributorID, in.WorkflowID, domain.SignalStatusUpdate, data)
	a.observe(NameNotifyContributor, nil)
	if err != nil {
		a.Logger.Warn("contributor notification failed",
			"contributor_id", in.ContributorID,
			"workflow_id", in.WorkflowID,
			"error", err)
		return &NotifyResult{Delivered: false}, nil
	}
	return &NotifyResult{Delivered: true}, nil
}

// SendSignalInput is a workflow-originated user signal.
type SendSignalInput struct {
	UserID     string            `json:"user_id"`
	WorkflowID string            `json:"workflow_id"`
	Type       domain.SignalType `json:"type"`
	Data       map[string]any    `json:"data"`
}

// SendSignalResult reports the persisted signal id.
type SendSignalResult struct {
	OK       bool   `json:"ok"`
	SignalID string `json:"signal_id,omitempty"`
}

// SendSignal pushes and persists a user signal. Delivery failure surfaces as
// a DeliveryFailure application error; callers treat it as soft.
func (a *Activities) SendSignal(ctx context.Context, in SendSignalInput) (out *SendSignalResult, err error) {
	defer func() { a.observe(NameSendSignal, err) }()

	sig, err := a.Signals.Send(ctx, in.UserID, in.WorkflowID, in.Type, in.Data)
	if err != nil {
		return nil, temporal.NewApplicationError("signal undeliverable", ErrTypeDeliveryFailure, err)
	}
	return &SendSignalResult{OK: true, SignalID: sig.ID}, nil
}
