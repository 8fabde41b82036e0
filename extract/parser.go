package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"
	"gopkg.in/yaml.v3"
)

// Parser converts one file format into a normalized Document.
type Parser interface {
	// Parse parses a document and returns normalized text.
	Parse(filename string, content []byte) (*Document, error)

	// CanParse reports whether this parser handles the given MIME type.
	CanParse(mimeType string) bool

	// MimeType returns the primary MIME type for this parser.
	MimeType() string
}

// Registry manages document parsers keyed by MIME type.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates a registry with the default parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(NewMarkdownParser())
	r.Register(NewHTMLParser())
	r.Register(NewPlainTextParser())
	return r
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.MimeType()] = p
}

// ForFile picks a parser from the filename extension, defaulting to plain
// text for unknown extensions.
func (r *Registry) ForFile(filename string) Parser {
	mime := mimeForExtension(strings.ToLower(filepath.Ext(filename)))
	return r.ForMimeType(mime)
}

// ForMimeType returns the parser for a MIME type, or the plain-text parser.
func (r *Registry) ForMimeType(mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.parsers[mimeType]; ok {
		return p
	}
	for _, p := range r.parsers {
		if p.CanParse(mimeType) {
			return p
		}
	}
	return r.parsers["text/plain"]
}

func mimeForExtension(ext string) string {
	switch ext {
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	default:
		return "text/plain"
	}
}

// MarkdownParser parses markdown documents with optional YAML frontmatter.
type MarkdownParser struct{}

// NewMarkdownParser creates a markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse extracts frontmatter and body from a markdown document.
func (p *MarkdownParser) Parse(filename string, content []byte) (*Document, error) {
	doc := &Document{
		ID:       generateID(filename, content),
		Filename: filepath.Base(filename),
	}

	str := string(content)
	if strings.HasPrefix(str, "---\n") || strings.HasPrefix(str, "---\r\n") {
		frontmatter, body, err := splitFrontmatter(str)
		if err == nil {
			doc.Frontmatter = frontmatter
			doc.Body = body
		} else {
			doc.Body = str
		}
	} else {
		doc.Body = str
	}

	if title, ok := doc.Frontmatter["title"].(string); ok {
		doc.Title = title
	} else {
		doc.Title = firstHeading(doc.Body)
	}
	return doc, nil
}

// CanParse reports whether this parser handles the MIME type.
func (p *MarkdownParser) CanParse(mimeType string) bool {
	return mimeType == "text/markdown" || mimeType == "text/x-markdown"
}

// MimeType returns the primary MIME type.
func (p *MarkdownParser) MimeType() string { return "text/markdown" }

// HTMLParser extracts readable content from HTML pages and converts it to
// markdown so downstream chunking sees a uniform format.
type HTMLParser struct {
	converter *htmltomd.Converter
}

// NewHTMLParser creates an HTML parser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{converter: htmltomd.NewConverter("", true, nil)}
}

// Parse strips boilerplate with readability, then converts to markdown.
func (p *HTMLParser) Parse(filename string, content []byte) (*Document, error) {
	article, err := readability.FromReader(strings.NewReader(string(content)), nil)
	if err != nil {
		return nil, fmt.Errorf("extract readable content: %w", err)
	}

	markdown, err := p.converter.ConvertString(article.Content)
	if err != nil {
		return nil, fmt.Errorf("convert html to markdown: %w", err)
	}

	return &Document{
		ID:       generateID(filename, content),
		Filename: filepath.Base(filename),
		Body:     markdown,
		Title:    article.Title,
	}, nil
}

// CanParse reports whether this parser handles the MIME type.
func (p *HTMLParser) CanParse(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// MimeType returns the primary MIME type.
func (p *HTMLParser) MimeType() string { return "text/html" }

// PlainTextParser passes text through unchanged.
type PlainTextParser struct{}

// NewPlainTextParser creates a plain-text parser.
func NewPlainTextParser() *PlainTextParser {
	return &PlainTextParser{}
}

// Parse wraps the raw content as a document.
func (p *PlainTextParser) Parse(filename string, content []byte) (*Document, error) {
	return &Document{
		ID:       generateID(filename, content),
		Filename: filepath.Base(filename),
		Body:     string(content),
	}, nil
}

// CanParse reports whether this parser handles the MIME type.
func (p *PlainTextParser) CanParse(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

// MimeType returns the primary MIME type.
func (p *PlainTextParser) MimeType() string { return "text/plain" }

// splitFrontmatter parses YAML frontmatter, returning the map and body.
func splitFrontmatter(content string) (map[string]any, string, error) {
	const delim = "---"

	start := len(delim)
	for start < len(content) && (content[start] == '\r' || content[start] == '\n') {
		start++
	}

	closeIdx := strings.Index(content[start:], "\n"+delim)
	if closeIdx == -1 {
		return nil, content, fmt.Errorf("no closing frontmatter delimiter")
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(content[start:start+closeIdx]), &frontmatter); err != nil {
		return nil, content, fmt.Errorf("parse frontmatter: %w", err)
	}

	body := content[start+closeIdx+len("\n"+delim):]
	body = strings.TrimLeft(body, "\r\n")
	return frontmatter, body, nil
}

// firstHeading returns the first markdown heading text, or "".
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}
