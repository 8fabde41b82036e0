package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Metadata is the lightweight structure extracted alongside the text.
type Metadata struct {
	Title      string `json:"title,omitempty"`
	WordCount  int    `json:"word_count"`
	ChunkCount int    `json:"chunk_count"`
}

// capitalizedPhrase matches runs of capitalized words such as names and
// places. Intentionally naive; real entity resolution belongs to the graph
// side.
var capitalizedPhrase = regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:[ \t]+[A-Z][a-zA-Z]+){0,3}\b`)

// sentenceStart marks words that open a sentence so they can be discounted.
var sentenceStart = regexp.MustCompile(`(?:^|[.!?]\s+)([A-Z][a-zA-Z]+)`)

// Entities extracts candidate named entities from text: capitalized phrases
// that recur, minus single words that only appear at sentence starts.
func Entities(text string, limit int) []string {
	counts := make(map[string]int)
	for _, m := range capitalizedPhrase.FindAllString(text, -1) {
		counts[m]++
	}

	starters := make(map[string]bool)
	for _, m := range sentenceStart.FindAllStringSubmatch(text, -1) {
		starters[m[1]] = true
	}

	type candidate struct {
		name  string
		count int
	}
	var candidates []candidate
	for name, count := range counts {
		if count < 2 {
			continue
		}
		// Single capitalized words that open sentences are usually not
		// entities.
		if !strings.Contains(name, " ") && starters[name] {
			continue
		}
		candidates = append(candidates, candidate{name, count})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].name < candidates[j].name
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}

// Topics derives topic candidates from section headings.
func Topics(body string, limit int) []string {
	var topics []string
	seen := make(map[string]bool)
	for _, sec := range parseSections(body) {
		h := strings.TrimSpace(sec.Heading)
		if h == "" {
			continue
		}
		key := strings.ToLower(h)
		if seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, h)
		if limit > 0 && len(topics) == limit {
			break
		}
	}
	return topics
}

// CountWords returns the number of whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
