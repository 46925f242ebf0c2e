package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// DefaultMinSimilarity drops orthogonal and opposed vectors.
const DefaultMinSimilarity = 0.01

// VectorSearcher implements SemanticSearcher with an embedder and the
// repository's similarity scan.
type VectorSearcher struct {
	embedder      ai.Embedder
	repo          storage.MessageRepository
	minSimilarity float32
	logger        *slog.Logger
}

// VectorOption configures a VectorSearcher.
type VectorOption func(*VectorSearcher) error

// WithMinSimilarity sets the cosine similarity floor.
func WithMinSimilarity(min float32) VectorOption {
	return func(v *VectorSearcher) error {
		if min < -1 || min > 1 {
			return ErrInvalidOption
		}
		v.minSimilarity = min
		return nil
	}
}

// WithVectorLogger sets the logger.
func WithVectorLogger(logger *slog.Logger) VectorOption {
	return func(v *VectorSearcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		v.logger = logger
		return nil
	}
}

// NewVectorSearcher creates a semantic searcher.
func NewVectorSearcher(embedder ai.Embedder, repo storage.MessageRepository, opts ...VectorOption) (*VectorSearcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if repo == nil {
		return nil, ErrMessageRepositoryRequired
	}
	v := &VectorSearcher{
		embedder:      embedder,
		repo:          repo,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Search embeds text and returns the most similar messages, best first.
func (v *VectorSearcher) Search(ctx context.Context, text string, topK int, userFilter *core.UserID) ([]core.ScoredMessage, error) {
	if topK <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	embedding, err := v.embedder.EmbedText(ctx, text)
	if err != nil {
		v.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, nil
	}

	matches, err := v.repo.FindSimilar(ctx, embedding, v.minSimilarity, topK, userFilter)
	if err != nil {
		v.logger.Error("error querying for similar messages", "err", err)
		return nil, err
	}
	return matches, nil
}
