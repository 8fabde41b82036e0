package extract

import (
	"fmt"
)

// Result is the full extraction output for one file.
type Result struct {
	Text     string   `json:"text"`
	Chunks   []Chunk  `json:"chunks"`
	Metadata Metadata `json:"metadata"`
	Entities []string `json:"entities,omitempty"`
	Topics   []string `json:"topics,omitempty"`
}

// Extractor combines parsing, chunking, and metadata extraction.
type Extractor struct {
	registry *Registry
	chunker  *Chunker
}

// NewExtractor creates an extractor with default parsers and chunking.
func NewExtractor() *Extractor {
	return &Extractor{
		registry: NewRegistry(),
		chunker:  NewDefaultChunker(),
	}
}

// NewExtractorWithConfig creates an extractor with custom chunking.
func NewExtractorWithConfig(cfg ChunkerConfig) (*Extractor, error) {
	chunker, err := NewChunker(cfg)
	if err != nil {
		return nil, err
	}
	return &Extractor{registry: NewRegistry(), chunker: chunker}, nil
}

// Extract parses a file and returns text, chunks, and metadata.
func (e *Extractor) Extract(filename string, content []byte) (*Result, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("file %s is empty", filename)
	}

	parser := e.registry.ForFile(filename)
	doc, err := parser.Parse(filename, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	chunks := e.chunker.Chunk(doc.ID, doc.Body)

	return &Result{
		Text:   doc.Body,
		Chunks: chunks,
		Metadata: Metadata{
			Title:      doc.Title,
			WordCount:  CountWords(doc.Body),
			ChunkCount: len(chunks),
		},
		Entities: Entities(doc.Body, 20),
		Topics:   Topics(doc.Body, 10),
	}, nil
}
