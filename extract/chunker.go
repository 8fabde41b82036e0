package extract

import (
	"fmt"
	"strings"
)

// charsPerToken approximates the GPT tokenizer ratio.
const charsPerToken = 4

// ChunkerConfig holds chunking configuration.
type ChunkerConfig struct {
	// TargetTokens is the ideal chunk size in tokens.
	TargetTokens int

	// MaxTokens is the maximum chunk size.
	MaxTokens int

	// MinTokens is the minimum chunk size; smaller trailing chunks are
	// merged into their predecessor.
	MinTokens int
}

// DefaultChunkerConfig returns sensible chunking defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		TargetTokens: 1000,
		MaxTokens:    1500,
		MinTokens:    200,
	}
}

// Validate checks the configuration.
func (c ChunkerConfig) Validate() error {
	if c.MinTokens <= 0 || c.TargetTokens <= 0 || c.MaxTokens <= 0 {
		return fmt.Errorf("chunk sizes must be positive")
	}
	if c.MinTokens >= c.TargetTokens {
		return fmt.Errorf("MinTokens (%d) must be less than TargetTokens (%d)", c.MinTokens, c.TargetTokens)
	}
	if c.TargetTokens > c.MaxTokens {
		return fmt.Errorf("TargetTokens (%d) must not exceed MaxTokens (%d)", c.TargetTokens, c.MaxTokens)
	}
	return nil
}

// Chunker splits documents into indexable chunks along section and paragraph
// boundaries.
type Chunker struct {
	config ChunkerConfig
}

// NewChunker creates a Chunker, validating the configuration.
func NewChunker(cfg ChunkerConfig) (*Chunker, error) {
	if cfg.TargetTokens == 0 {
		cfg = DefaultChunkerConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: cfg}, nil
}

// NewDefaultChunker creates a Chunker with default configuration.
func NewDefaultChunker() *Chunker {
	c, err := NewChunker(DefaultChunkerConfig())
	if err != nil {
		panic(err)
	}
	return c
}

// section is a heading plus its content.
type section struct {
	Heading string
	Content string
}

// Chunk splits a document body into chunks. Sections are packed up to the
// target size; oversized sections are split on paragraph boundaries.
func (c *Chunker) Chunk(parentID, body string) []Chunk {
	var chunks []Chunk
	current := Chunk{ParentID: parentID}

	flush := func() {
		if strings.TrimSpace(current.Content) == "" {
			return
		}
		current.Index = len(chunks)
		current.TokenCount = estimateTokens(current.Content)
		chunks = append(chunks, current)
		current = Chunk{ParentID: parentID}
	}

	for _, sec := range parseSections(body) {
		pieces := []string{sec.Content}
		if estimateTokens(sec.Content) > c.config.MaxTokens {
			pieces = splitParagraphs(sec.Content, c.config.TargetTokens)
		}

		for _, piece := range pieces {
			pieceTokens := estimateTokens(piece)
			currentTokens := estimateTokens(current.Content)

			if currentTokens > 0 && currentTokens+pieceTokens > c.config.TargetTokens {
				flush()
			}
			if current.Section == "" {
				current.Section = sec.Heading
			}
			if current.Content != "" {
				current.Content += "\n\n"
			}
			current.Content += piece
		}
	}
	flush()

	return c.mergeSmallTail(chunks)
}

// mergeSmallTail folds a trailing chunk below MinTokens into its predecessor.
func (c *Chunker) mergeSmallTail(chunks []Chunk) []Chunk {
	n := len(chunks)
	if n < 2 || chunks[n-1].TokenCount >= c.config.MinTokens {
		return chunks
	}
	prev := &chunks[n-2]
	prev.Content += "\n\n" + chunks[n-1].Content
	prev.TokenCount = estimateTokens(prev.Content)
	return chunks[:n-1]
}

// parseSections splits markdown into heading-delimited sections, keeping
// code fences intact.
func parseSections(body string) []section {
	var sections []section
	var current section
	inCodeBlock := false

	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
		}

		if !inCodeBlock && isHeading(line) {
			if strings.TrimSpace(current.Content) != "" {
				sections = append(sections, current)
			}
			current = section{
				Heading: strings.TrimSpace(strings.TrimLeft(line, "# ")),
				Content: line,
			}
			continue
		}

		if current.Content != "" {
			current.Content += "\n"
		}
		current.Content += line
	}
	if strings.TrimSpace(current.Content) != "" {
		sections = append(sections, current)
	}
	return sections
}

// splitParagraphs breaks content into pieces no larger than targetTokens,
// splitting on blank lines.
func splitParagraphs(content string, targetTokens int) []string {
	paragraphs := strings.Split(content, "\n\n")
	var pieces []string
	var buf string

	for _, para := range paragraphs {
		if buf != "" && estimateTokens(buf)+estimateTokens(para) > targetTokens {
			pieces = append(pieces, buf)
			buf = ""
		}
		if buf != "" {
			buf += "\n\n"
		}
		buf += para
	}
	if strings.TrimSpace(buf) != "" {
		pieces = append(pieces, buf)
	}
	return pieces
}

func isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	rest := strings.TrimLeft(trimmed, "#")
	return strings.HasPrefix(rest, " ") && strings.TrimSpace(rest) != ""
}

func estimateTokens(s string) int {
	return len(s) / charsPerToken
}
