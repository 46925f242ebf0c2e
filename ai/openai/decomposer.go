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
	"fmt"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	decomposeTemperature = 0.1
	decomposeMaxTokens   = 300
)

// Decomposer implements ai.QueryDecomposer using an OpenAI-compatible chat API.
type Decomposer struct {
	client   llms.Model
	maxUsers int
	logger   *slog.Logger
}

// newChatClient creates the chat model shared by the decomposer and generator.
func newChatClient(config *ai.Config) (llms.Model, error) {
	// "none" satisfies local OpenAI-compatible services that don't require authentication
	return openai.New(
		openai.WithBaseURL(config.LLMHost),
		openai.WithToken("none"),
		openai.WithModel(config.LLMModel),
	)
}

func newDecomposer(client llms.Model, config *ai.Config) *Decomposer {
	return &Decomposer{
		client:   client,
		maxUsers: config.MaxKnownUsers,
		logger:   slog.Default().With("component", "openai-decomposer"),
	}
}

// NewDecomposer creates a new decomposer using the provided configuration.
//
// Returns ai.QueryDecomposer interface to enforce abstraction.
func NewDecomposer(config *ai.Config) (ai.QueryDecomposer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatClient(config)
	if err != nil {
		return nil, err
	}
	return newDecomposer(client, config), nil
}

// Decompose asks the model to split query into self-contained sub-queries.
// The model's answer must be a JSON array of strings; fenced or slightly
// malformed arrays are repaired before parsing.
func (d *Decomposer) Decompose(ctx context.Context, query string, knownUsers []string) ([]string, error) {
	if len(knownUsers) > d.maxUsers {
		knownUsers = knownUsers[:d.maxUsers]
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(buildDecompositionPrompt(query, knownUsers)),
			},
		},
	}

	response, err := d.client.GenerateContent(ctx, content,
		llms.WithTemperature(decomposeTemperature),
		llms.WithMaxTokens(decomposeMaxTokens))
	if err != nil {
		d.logger.Error("failed to generate decomposition", "err", err)
		return nil, err
	}
	if len(response.Choices) < 1 {
		return nil, ai.ErrEmptyResponse
	}

	subQueries, err := parseSubQueries(response.Choices[0].Content)
	if err != nil {
		d.logger.Warn("error parsing decomposition response",
			"response", response.Choices[0].Content,
			"err", err)
		return nil, fmt.Errorf("decompose %q: %w", query, err)
	}

	d.logger.Debug("decomposed query", "query", query, "sub_queries", len(subQueries))
	return subQueries, nil
}
