package mock

import (
	"context"
	"sync"
)

// MockDecomposer is a test double for ai.QueryDecomposer.
type MockDecomposer struct {
	// DecomposeFunc is called by Decompose if set.
	// If nil, the query is returned unchanged.
	DecomposeFunc func(ctx context.Context, query string, knownUsers []string) ([]string, error)

	mu        sync.Mutex
	callCount int
}

// NewMockDecomposer creates a mock decomposer that never splits queries.
func NewMockDecomposer() *MockDecomposer {
	return &MockDecomposer{}
}

// Decompose returns the injected result or the query itself.
func (m *MockDecomposer) Decompose(ctx context.Context, query string, knownUsers []string) ([]string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.DecomposeFunc != nil {
		return m.DecomposeFunc(ctx, query, knownUsers)
	}
	return []string{query}, nil
}

// CallCount returns the number of times Decompose was called.
func (m *MockDecomposer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
