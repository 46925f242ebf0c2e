// Package mock provides test doubles for the ai package interfaces.
//
// Constructors return concrete types so tests can inject behavior through
// function fields and assert on call counts.
//
// # Usage
//
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	decomposer := mock.NewMockDecomposer()
//	decomposer.DecomposeFunc = func(ctx context.Context, query string, users []string) ([]string, error) {
//	    return nil, errors.New("service unavailable")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns hashed bag-of-words unit vectors, so texts that
//     share words are similar
//   - MockDecomposer: Returns the query unchanged
//   - MockGenerator: Reports how many context messages it received
//   - MockProvider: Aggregates the three mocks
package mock
