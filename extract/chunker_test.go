package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultChunkerConfig().Validate())
	assert.Error(t, ChunkerConfig{TargetTokens: 100, MaxTokens: 200, MinTokens: 0}.Validate())
	assert.Error(t, ChunkerConfig{TargetTokens: 100, MaxTokens: 50, MinTokens: 10}.Validate())
	assert.Error(t, ChunkerConfig{TargetTokens: 100, MaxTokens: 200, MinTokens: 150}.Validate())
}

func TestChunkSmallDocumentSingleChunk(t *testing.T) {
	c := NewDefaultChunker()
	chunks := c.Chunk("doc-1", "# Title\n\nShort body.")

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1", chunks[0].ParentID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Title", chunks[0].Section)
	assert.Contains(t, chunks[0].Content, "Short body.")
}

func TestChunkSplitsOnSections(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{TargetTokens: 50, MaxTokens: 80, MinTokens: 5})
	require.NoError(t, err)

	body := "# First\n\n" + strings.Repeat("alpha beta gamma delta. ", 10) +
		"\n\n# Second\n\n" + strings.Repeat("epsilon zeta eta theta. ", 10)
	chunks := c.Chunk("doc-1", body)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, "First", chunks[0].Section)
	last := chunks[len(chunks)-1]
	assert.Contains(t, last.Content, "epsilon")

	// Indexes are sequential.
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Positive(t, ch.TokenCount)
	}
}

func TestChunkOversizedSectionSplitsOnParagraphs(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{TargetTokens: 30, MaxTokens: 40, MinTokens: 5})
	require.NoError(t, err)

	paras := make([]string, 6)
	for i := range paras {
		paras[i] = strings.Repeat("word ", 30)
	}
	body := "# Big\n\n" + strings.Join(paras, "\n\n")

	chunks := c.Chunk("doc-1", body)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 45, "chunks stay near the max")
	}
}

func TestChunkKeepsCodeFences(t *testing.T) {
	c := NewDefaultChunker()
	body := "# Code\n\n```\n# not a heading\nx = 1\n```\n"
	chunks := c.Chunk("doc-1", body)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "# not a heading")
}

func TestChunkMergesSmallTail(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{TargetTokens: 50, MaxTokens: 80, MinTokens: 20})
	require.NoError(t, err)

	body := strings.Repeat("filler words here. ", 12) + "\n\n# Tiny\n\nend."
	chunks := c.Chunk("doc-1", body)

	last := chunks[len(chunks)-1]
	assert.Contains(t, last.Content, "end.")
	assert.GreaterOrEqual(t, last.TokenCount, 20)
}

func TestChunkEmptyBody(t *testing.T) {
	c := NewDefaultChunker()
	assert.Empty(t, c.Chunk("doc-1", ""))
	assert.Empty(t, c.Chunk("doc-1", "\n\n  \n"))
}
