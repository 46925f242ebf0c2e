package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/poiesic/recall/textutil"
)

// Dimensions is the length of vectors produced by the default mock embedder.
const Dimensions = 384

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via GetMockEmbedder().
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// EmbedText returns a hashed bag-of-words vector, so texts sharing words
// have positive cosine similarity.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.record()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return HashVector(text, Dimensions), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.record()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = HashVector(text, Dimensions)
	}
	return vectors, nil
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

func (m *MockEmbedder) record() {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()
}

// HashVector folds each word of text into one of dim buckets using FNV
// and returns the unit-length result. Text without words yields a zero vector.
func HashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	for _, word := range textutil.Words(textutil.Fold(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%uint32(dim)]++
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}
