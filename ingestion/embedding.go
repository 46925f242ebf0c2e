package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
)

// embeddingProcessor generates unit-length embeddings for messages.
type embeddingProcessor struct {
	embedder       ai.Embedder
	maxAttempts    int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(embedder ai.Embedder, maxAttempts int, retryBaseDelay time.Duration, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:       embedder,
		maxAttempts:    maxAttempts,
		retryBaseDelay: retryBaseDelay,
		logger:         logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the text of every message that has no vector yet.
func (ep *embeddingProcessor) process(ctx context.Context, msgs []*core.Message) error {
	var pending []*core.Message
	for _, msg := range msgs {
		if len(msg.Vector) == 0 {
			pending = append(pending, msg)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, msg := range pending {
		texts[i] = msg.Text
	}

	ep.logger.Debug("generating embeddings", "messages", len(texts))
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, ep.logger, func() error {
		var err error
		embeddings, err = ep.embedder.EmbedTexts(ctx, texts)
		return err
	}, ep.maxAttempts, ep.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", ep.maxAttempts, err)
	}

	if len(embeddings) != len(pending) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(pending), len(embeddings))
	}

	for i, msg := range pending {
		msg.Vector = normalizeVector(embeddings[i])
	}
	return nil
}

// normalizeVector returns v scaled to unit length. A zero vector stays zero.
func normalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	result := make([]float32, len(v))
	if sumSquares == 0 {
		return result
	}
	magnitude := math.Sqrt(sumSquares)
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}
