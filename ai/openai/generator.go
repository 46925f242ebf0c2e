// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/tmc/langchaingo/llms"
)

// noContextAnswer is returned without calling the model when retrieval found nothing.
const noContextAnswer = "I couldn't find any member messages relevant to this question."

// Generator implements ai.AnswerGenerator using an OpenAI-compatible chat API.
type Generator struct {
	client      llms.Model
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

func newGenerator(client llms.Model, config *ai.Config) *Generator {
	return &Generator{
		client:      client,
		model:       config.LLMModel,
		temperature: config.AnswerTemperature,
		maxTokens:   config.AnswerMaxTokens,
		logger:      slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.AnswerGenerator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.AnswerGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatClient(config)
	if err != nil {
		return nil, err
	}
	return newGenerator(client, config), nil
}

// GenerateAnswer answers query from results, which are presented to the
// model in rank order.
func (g *Generator) GenerateAnswer(ctx context.Context, query string, results []core.RankedResult) (*ai.Answer, error) {
	answer := &ai.Answer{
		Query:   query,
		Model:   g.model,
		Sources: results,
	}
	if len(results) == 0 {
		answer.Text = noContextAnswer
		return answer, nil
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(answerSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildAnswerPrompt(query, results))},
		},
	}

	response, err := g.client.GenerateContent(ctx, content,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens))
	if err != nil {
		g.logger.Error("failed to generate answer", "err", err)
		return nil, err
	}
	if len(response.Choices) < 1 {
		return nil, ai.ErrEmptyResponse
	}

	choice := response.Choices[0]
	answer.Text = choice.Content
	answer.Usage = tokenUsage(choice.GenerationInfo)

	g.logger.Debug("generated answer",
		"context_messages", len(results),
		"completion_tokens", answer.Usage.Completion)
	return answer, nil
}
