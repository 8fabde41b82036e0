// Package extract turns uploaded files into normalized text, chunks, and
// lightweight metadata for indexing.
package extract

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document is a parsed file ready for chunking.
type Document struct {
	// ID is derived from the filename and content hash.
	ID string `json:"id"`

	// Filename is the original filename.
	Filename string `json:"filename"`

	// Body is the normalized text (markdown for structured inputs).
	Body string `json:"body"`

	// Frontmatter contains parsed YAML frontmatter if present.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`

	// Title is the document title when one could be detected.
	Title string `json:"title,omitempty"`
}

// Chunk is one retrievable unit of a document.
type Chunk struct {
	// ParentID is the ID of the parent document.
	ParentID string `json:"parent_id"`

	// Index is the chunk sequence number (0-based).
	Index int `json:"index"`

	// Section is the heading this chunk belongs to, if any.
	Section string `json:"section,omitempty"`

	// Content is the chunk text.
	Content string `json:"content"`

	// TokenCount is the estimated token count.
	TokenCount int `json:"token_count"`
}

// generateID derives a stable document id from the filename and content.
func generateID(filename string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))[:16]
}
