package llm

import (
	"regexp"
	"strings"
)

// LLMs wrap JSON in markdown fences and sprinkle in comments and trailing
// commas; these patterns recover a parseable payload.
var (
	fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	bareObjectPattern   = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	fencedArrayPattern  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	bareArrayPattern    = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	trailingComma       = regexp.MustCompile(`,\s*([}\]])`)
	lineComment         = regexp.MustCompile(`(?m)^\s*//.*$`)
)

// ExtractObject extracts a JSON object from an LLM response string.
// Returns "" when no object can be found.
func ExtractObject(content string) string {
	if m := fencedObjectPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := bareObjectPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// ExtractArray extracts a JSON array from an LLM response string.
func ExtractArray(content string) string {
	if m := fencedArrayPattern.FindStringSubmatch(content); len(m) > 1 {
		return cleanJSON(m[1])
	}
	if m := bareArrayPattern.FindString(content); m != "" {
		return cleanJSON(m)
	}
	return ""
}

// cleanJSON strips line comments and trailing commas.
func cleanJSON(raw string) string {
	raw = lineComment.ReplaceAllString(raw, "")
	raw = trailingComma.ReplaceAllString(raw, "$1")
	return strings.TrimSpace(raw)
}
