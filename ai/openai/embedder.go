package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// local servers ignore the token but the client requires one
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a query string. Empty model output yields an empty
// vector, which callers treat as "no semantic candidates".
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("embedding query", "length", len(text))

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to embed query", "err", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vector) == 0 {
		e.logger.Warn("embedder returned empty vector")
		return []float32{}, nil
	}
	return vector, nil
}

// EmbedTexts embeds a batch of message texts, one vector per text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding messages", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to embed messages", "count", len(texts), "err", err)
		return nil, fmt.Errorf("embedding %d messages: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %d vectors for %d messages", ai.ErrEmptyResponse, len(vectors), len(texts))
	}
	return vectors, nil
}
