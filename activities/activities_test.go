package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/curatorhq/curator/domain"
	"github.com/curatorhq/curator/extract"
	"github.com/curatorhq/curator/llm"
	"github.com/curatorhq/curator/vector"
)

type fakeLLM struct {
	content string
	err     error
	embErr  error
	lastReq llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{
		Content: f.content,
		Meta:    llm.CallMeta{Model: "test-model", TotalTokens: 42},
	}, nil
}

func (f *fakeLLM) Embed(_ context.Context, _ llm.EmbeddingConfig, texts []string) ([][]float32, error) {
	if f.embErr != nil {
		return nil, f.embErr
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{0.1, 0.2, 0.3}
	}
	return vecs, nil
}

type fakeVector struct {
	domainID string
	docID    string
	err      error
	chunks   []vector.Chunk
}

func (f *fakeVector) IndexDomain(_ context.Context, _ *domain.Domain, _ string, _ []float32) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.domainID, nil
}

func (f *fakeVector) IndexDocument(_ context.Context, _ *domain.Document, chunks []vector.Chunk) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.chunks = chunks
	return f.docID, nil
}

type fakeGraph struct {
	domains   int
	documents int
	err       error
}

func (f *fakeGraph) UpsertDomain(_ context.Context, _ *domain.Domain) error {
	if f.err != nil {
		return f.err
	}
	f.domains++
	return nil
}

func (f *fakeGraph) UpsertDocument(_ context.Context, _ *domain.Document, _, _ []string) error {
	if f.err != nil {
		return f.err
	}
	f.documents++
	return nil
}

type fakeSignals struct {
	sent []domain.SignalType
	err  error
}

func (f *fakeSignals) Send(_ context.Context, userID, workflowID string, t domain.SignalType, data map[string]any) (*domain.Signal, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, t)
	return &domain.Signal{ID: "sig-1", UserID: userID, WorkflowID: workflowID, Type: t, Data: data}, nil
}

type fakeFiles map[string][]byte

func (f fakeFiles) Fetch(_ context.Context, ref string) ([]byte, error) {
	data, ok := f[ref]
	if !ok {
		return nil, fmt.Errorf("no such file %q", ref)
	}
	return data, nil
}

func newTestActivities(model *fakeLLM) *Activities {
	return New(Activities{
		LLM:     model,
		Vector:  &fakeVector{domainID: "vec-dom", docID: "vec-doc"},
		Graph:   &fakeGraph{},
		Signals: &fakeSignals{},
		Files: fakeFiles{
			"notes.md": []byte("# Clason Facades\n\nNotes on natural stone and lime mortar in Clason's restorations.\n"),
		},
	})
}

func appErrType(t *testing.T, err error) *temporal.ApplicationError {
	t.Helper()
	var appErr *temporal.ApplicationError
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func TestResearchDomainParsesAndMergesTopics(t *testing.T) {
	model := &fakeLLM{content: `Here you go:
{"summary": "Clason led Swedish National Romanticism.",
 "topics": ["national romanticism", "Architecture"],
 "quality_criteria": {"min_length": 1200, "quality_threshold": 7.5}}`}
	a := newTestActivities(model)

	out, err := a.ResearchDomain(context.Background(), ResearchInput{
		Title:         "Isac Gustav Clason",
		InitialTopics: []string{"architecture", "swedish history"},
		ResearchDepth: "comprehensive",
	})
	require.NoError(t, err)
	assert.Equal(t, "Clason led Swedish National Romanticism.", out.Summary)
	// Initial topics come first; duplicates collapse case-insensitively.
	assert.Equal(t, []string{"architecture", "swedish history", "national romanticism"}, out.Topics)
	assert.Equal(t, "test-model", out.Meta.Model)
	assert.Contains(t, model.lastReq.Messages[1].Content, "Research depth: comprehensive")
}

func TestResearchDomainMalformedOutput(t *testing.T) {
	for name, content := range map[string]string{
		"not json":        "I could not find anything.",
		"missing summary": `{"topics": ["a"]}`,
		"missing topics":  `{"summary": "s", "topics": []}`,
		"bad criteria":    `{"summary": "s", "topics": ["a"], "quality_criteria": {"quality_threshold": 99}}`,
	} {
		t.Run(name, func(t *testing.T) {
			a := newTestActivities(&fakeLLM{content: content})
			_, err := a.ResearchDomain(context.Background(), ResearchInput{Title: "x"})
			appErr := appErrType(t, err)
			assert.Equal(t, ErrTypeMalformedResponse, appErr.Type())
			assert.False(t, appErr.NonRetryable())
		})
	}
}

func TestResearchDomainBudgetExceeded(t *testing.T) {
	a := newTestActivities(&fakeLLM{err: llm.NewFatalError(llm.ErrBudgetExceeded)})
	_, err := a.ResearchDomain(context.Background(), ResearchInput{Title: "x", BudgetLimit: 0.01})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeBudgetExceeded, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestResearchDomainUpstreamFailure(t *testing.T) {
	a := newTestActivities(&fakeLLM{err: errors.New("connection refused")})
	_, err := a.ResearchDomain(context.Background(), ResearchInput{Title: "x"})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeUpstreamUnavailable, appErr.Type())
	assert.False(t, appErr.NonRetryable())
}

func TestGenerateExampleQuestions(t *testing.T) {
	model := &fakeLLM{content: `[
  {"question": "Which museum did Clason design?", "category": "factual", "difficulty": "basic", "relevance_score": 9},
  {"question": "How did Clason use stone?", "category": "conceptual", "difficulty": "intermediate", "relevance_score": 8}
]`}
	a := newTestActivities(model)

	out, err := a.GenerateExampleQuestions(context.Background(), QuestionsInput{DomainTitle: "Clason"})
	require.NoError(t, err)
	require.Len(t, out.Questions, 2)
	assert.Equal(t, "factual", out.Questions[0].Category)
}

func TestGenerateExampleQuestionsEmptyQuestion(t *testing.T) {
	a := newTestActivities(&fakeLLM{content: `[{"question": "", "category": "factual"}]`})
	_, err := a.GenerateExampleQuestions(context.Background(), QuestionsInput{DomainTitle: "Clason"})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeMalformedResponse, appErr.Type())
}

func TestIndexDomain(t *testing.T) {
	a := newTestActivities(&fakeLLM{})
	graph := a.Graph.(*fakeGraph)

	out, err := a.IndexDomain(context.Background(), IndexDomainInput{
		Domain:  domain.Domain{ID: "clason", Title: "Clason"},
		Summary: "summary text",
	})
	require.NoError(t, err)
	assert.Equal(t, "vec-dom", out.VectorID)
	assert.True(t, out.GraphUpdated)
	assert.Equal(t, 1, graph.domains)
}

func TestAssessDocumentRelevance(t *testing.T) {
	model := &fakeLLM{content: `{"relevance_score": 8.5, "is_relevant": true,
 "summary": "Stone facade techniques.", "topics": ["stone facades"]}`}
	a := newTestActivities(model)

	out, err := a.AssessDocumentRelevance(context.Background(), AssessInput{
		DocumentID:  "doc-1",
		FileRef:     "notes.md",
		DomainTitle: "Clason",
	})
	require.NoError(t, err)
	assert.Equal(t, 8.5, out.RelevanceScore)
	assert.True(t, out.IsRelevant)
	// The document text reaches the prompt.
	assert.Contains(t, model.lastReq.Messages[1].Content, "lime mortar")
}

func TestAssessDocumentRelevanceScoreOutOfRange(t *testing.T) {
	a := newTestActivities(&fakeLLM{content: `{"relevance_score": 14, "summary": "s"}`})
	_, err := a.AssessDocumentRelevance(context.Background(), AssessInput{FileRef: "notes.md"})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeMalformedResponse, appErr.Type())
}

func TestAssessDocumentRelevanceMissingFile(t *testing.T) {
	a := newTestActivities(&fakeLLM{})
	_, err := a.AssessDocumentRelevance(context.Background(), AssessInput{FileRef: "gone.md"})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeExtractionFailure, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestExtractText(t *testing.T) {
	a := newTestActivities(&fakeLLM{})

	out, err := a.ExtractText(context.Background(), ExtractInput{FileRef: "notes.md"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Chunks)
	assert.Contains(t, out.Text, "lime mortar")
	assert.Equal(t, len(out.Chunks), out.Metadata.ChunkCount)
}

func TestExtractTextEmptyFile(t *testing.T) {
	a := newTestActivities(&fakeLLM{})
	a.Files = fakeFiles{"empty.md": nil}

	_, err := a.ExtractText(context.Background(), ExtractInput{FileRef: "empty.md"})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeExtractionFailure, appErr.Type())
}

func TestGenerateEmbeddings(t *testing.T) {
	a := newTestActivities(&fakeLLM{})

	out, err := a.GenerateEmbeddings(context.Background(), EmbedInput{
		Chunks: []extract.Chunk{{Content: "one"}, {Content: "two"}},
	})
	require.NoError(t, err)
	require.Len(t, out.Vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, out.Vectors[0])
}

func TestIndexWeaviateCountMismatch(t *testing.T) {
	a := newTestActivities(&fakeLLM{})

	_, err := a.IndexWeaviate(context.Background(), IndexWeaviateInput{
		Document: domain.Document{ID: "doc-1"},
		Vectors:  [][]float32{{0.1}},
	})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeStoreUnavailable, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestNotifyContributorSendsStatusUpdate(t *testing.T) {
	a := newTestActivities(&fakeLLM{})
	sigs := &fakeSignals{}
	a.Signals = sigs

	out, err := a.NotifyContributor(context.Background(), NotifyInput{
		ContributorID: "user-9",
		Decision:      "approved",
	})
	require.NoError(t, err)
	assert.True(t, out.Delivered)
	// The completion signal belongs to the workflow; the notification is a
	// status update so the contributor sees exactly one completion.
	assert.Equal(t, []domain.SignalType{domain.SignalStatusUpdate}, sigs.sent)
}

func TestNotifyContributorNeverFatal(t *testing.T) {
	a := newTestActivities(&fakeLLM{})
	a.Signals = &fakeSignals{err: errors.New("all channels down")}

	out, err := a.NotifyContributor(context.Background(), NotifyInput{
		ContributorID: "user-9",
		Decision:      "approved",
	})
	require.NoError(t, err)
	assert.False(t, out.Delivered)
}

func TestSendSignalDeliveryFailure(t *testing.T) {
	a := newTestActivities(&fakeLLM{})
	a.Signals = &fakeSignals{err: errors.New("all channels down")}

	_, err := a.SendSignal(context.Background(), SendSignalInput{
		UserID: "user-9",
		Type:   domain.SignalStatusUpdate,
		Data:   map[string]any{"status": "started"},
	})
	appErr := appErrType(t, err)
	assert.Equal(t, ErrTypeDeliveryFailure, appErr.Type())
}

func TestLocalFilesRejectsEscapingRefs(t *testing.T) {
	files := LocalFiles{Base: t.TempDir()}
	_, err := files.Fetch(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	_, err = files.Fetch(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}
