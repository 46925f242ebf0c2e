package openai

import (
	"testing"

	"github.com/poiesic/recall/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "no fence", input: `["a"]`, want: `["a"]`},
		{name: "json fence", input: "```json\n[\"a\"]\n```", want: `["a"]`},
		{name: "bare fence", input: "```\n[\"a\"]\n```", want: `["a"]`},
		{name: "unterminated fence", input: "```json\n[\"a\"]", want: `["a"]`},
		{name: "surrounding whitespace", input: "  [\"a\"]\n", want: `["a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFences(tt.input))
		})
	}
}

func TestParseSubQueries(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "plain array",
			input: `["What are Hans Müller's dining preferences?", "What are Layla Kawaguchi's dining preferences?"]`,
			want:  []string{"What are Hans Müller's dining preferences?", "What are Layla Kawaguchi's dining preferences?"},
		},
		{
			name:  "fenced array",
			input: "```json\n[\"q1\", \"q2\"]\n```",
			want:  []string{"q1", "q2"},
		},
		{
			name:  "prose around array",
			input: "Here are the sub-queries: [\"q1\"] Hope that helps.",
			want:  []string{"q1"},
		},
		{
			name:  "trailing comma repaired",
			input: `["q1", "q2",]`,
			want:  []string{"q1", "q2"},
		},
		{
			name:  "blank entries dropped",
			input: `["q1", "  ", ""]`,
			want:  []string{"q1"},
		},
		{name: "empty array", input: `[]`, wantErr: true},
		{name: "only blanks", input: `["", " "]`, wantErr: true},
		{name: "empty response", input: "   ", wantErr: true},
		{name: "object", input: `{"query": "q1"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSubQueries(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ai.ErrMalformedDecomposition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenUsage(t *testing.T) {
	usage := tokenUsage(map[string]any{
		"PromptTokens":     120,
		"CompletionTokens": int64(40),
		"TotalTokens":      float64(160),
	})
	assert.Equal(t, ai.TokenUsage{Prompt: 120, Completion: 40, Total: 160}, usage)

	assert.Equal(t, ai.TokenUsage{}, tokenUsage(nil))
}
