package ai

import (
	"context"

	"github.com/poiesic/recall/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// QueryDecomposer splits a comparison query into self-contained sub-queries
// using a language model.
// Implementations must be thread-safe for concurrent use.
type QueryDecomposer interface {
	// Decompose returns the sub-queries for query. knownUsers gives the
	// model the display names it may expand references to.
	// Returns an error if the model fails or its output cannot be parsed
	// into a non-empty list of strings.
	Decompose(ctx context.Context, query string, knownUsers []string) ([]string, error)
}

// AnswerGenerator turns ranked retrieval results into a natural-language answer.
// Implementations must be thread-safe for concurrent use.
type AnswerGenerator interface {
	// GenerateAnswer answers query from the given context messages, in rank order.
	GenerateAnswer(ctx context.Context, query string, results []core.RankedResult) (*Answer, error)
}

// Answer is a generated response and the messages it was grounded on.
type Answer struct {
	Query   string
	Text    string
	Model   string
	Usage   TokenUsage
	Sources []core.RankedResult
}

// TokenUsage reports model token consumption when the service provides it.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Decomposer returns the language-model query decomposer.
	Decomposer() QueryDecomposer

	// Generator returns the answer generator.
	Generator() AnswerGenerator

	// Close releases resources held by the provider and its services.
	Close() error
}
