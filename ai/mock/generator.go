package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
)

// MockGenerator is a test double for ai.AnswerGenerator.
type MockGenerator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	// If nil, the answer reports how many messages it was given.
	GenerateAnswerFunc func(ctx context.Context, query string, results []core.RankedResult) (*ai.Answer, error)

	mu        sync.Mutex
	callCount int
}

// NewMockGenerator creates a mock answer generator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// GenerateAnswer returns the injected answer or a fixed summary.
func (m *MockGenerator) GenerateAnswer(ctx context.Context, query string, results []core.RankedResult) (*ai.Answer, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, query, results)
	}
	return &ai.Answer{
		Query:   query,
		Text:    fmt.Sprintf("Found %d relevant messages.", len(results)),
		Model:   "mock",
		Sources: results,
	}, nil
}

// CallCount returns the number of times GenerateAnswer was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
