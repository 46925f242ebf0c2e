package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/poiesic/recall/ai"
)

// stripCodeFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

// parseSubQueries extracts a non-empty list of strings from a model response.
func parseSubQueries(response string) ([]string, error) {
	text := stripCodeFences(response)
	if start, end := strings.Index(text, "["), strings.LastIndex(text, "]"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	if text == "" {
		return nil, ai.ErrMalformedDecomposition
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedDecomposition, err)
	}

	var raw []string
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedDecomposition, err)
	}

	subQueries := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			subQueries = append(subQueries, q)
		}
	}
	if len(subQueries) == 0 {
		return nil, ai.ErrMalformedDecomposition
	}
	return subQueries, nil
}

// tokenUsage reads token counts from langchaingo generation info.
func tokenUsage(info map[string]any) ai.TokenUsage {
	count := func(key string) int {
		switch v := info[key].(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
		return 0
	}
	return ai.TokenUsage{
		Prompt:     count("PromptTokens"),
		Completion: count("CompletionTokens"),
		Total:      count("TotalTokens"),
	}
}
