package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			"fenced json block",
			"Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			`{"a": 1}`,
		},
		{
			"bare fence",
			"```\n{\"a\": 1}\n```",
			`{"a": 1}`,
		},
		{
			"unfenced object",
			"The result is {\"score\": 8.5} as requested",
			`{"score": 8.5}`,
		},
		{
			"trailing comma removed",
			`{"a": 1, "b": [1, 2,],}`,
			`{"a": 1, "b": [1, 2]}`,
		},
		{
			"no json",
			"I cannot answer that.",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractObject(tt.content))
		})
	}
}

func TestExtractObjectStripsComments(t *testing.T) {
	content := "```json\n{\n// the score\n\"score\": 7\n}\n```"
	got := ExtractObject(content)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	assert.Equal(t, float64(7), parsed["score"])
}

func TestExtractArray(t *testing.T) {
	got := ExtractArray("Questions:\n```json\n[{\"question\": \"why?\"}]\n```")
	assert.Equal(t, `[{"question": "why?"}]`, got)

	got = ExtractArray(`prefix [1, 2, 3,] suffix`)
	assert.Equal(t, `[1, 2, 3]`, got)

	assert.Equal(t, "", ExtractArray("nothing here"))
}
