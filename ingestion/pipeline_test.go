package ingestion

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRepos struct {
	messages storage.MessageRepository
	graph    storage.GraphRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	messages, graph, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return testRepos{messages: messages, graph: graph}
}

func newTestPipeline(t *testing.T, repos testRepos, embedder *mock.MockEmbedder, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithRetry(3, time.Millisecond)}, opts...)
	p, err := NewPipeline(repos.messages, repos.graph, embedder, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func testMessages() []*core.Message {
	ts := time.Date(2024, 11, 14, 9, 30, 0, 0, time.UTC)
	return []*core.Message{
		{ID: "m1", UserID: "u1", UserDisplayName: "Hans Müller", Timestamp: ts, Text: "I prefer Italian cuisine when dining out."},
		{ID: "m2", UserID: "u1", UserDisplayName: "Hans Müller", Timestamp: ts, Text: "Please book a table at Nobu for Friday."},
		{ID: "m3", UserID: "u2", UserDisplayName: "Layla Kawaguchi", Timestamp: ts, Text: "I prefer aisle seats on long flights."},
		{ID: "m4", UserID: "u3", UserDisplayName: "Vikram Desai", Timestamp: ts, Text: "I own two cars, a Tesla and a Porsche."},
		{ID: "m5", UserID: "u4", UserDisplayName: "Amira Desai", Timestamp: ts, Text: "Reserve the opera box for Saturday."},
	}
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNewPipeline_Validation(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()

	_, err := NewPipeline(nil, repos.graph, embedder)
	assert.ErrorIs(t, err, ErrMessageRepositoryRequired)
	_, err = NewPipeline(repos.messages, nil, embedder)
	assert.ErrorIs(t, err, ErrGraphRepositoryRequired)
	_, err = NewPipeline(repos.messages, repos.graph, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewPipeline(repos.messages, repos.graph, embedder, WithBatchSize(0))
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = NewPipeline(repos.messages, repos.graph, embedder, WithRetry(0, time.Second))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestIngestMessages(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()
	var progress bytes.Buffer
	p := newTestPipeline(t, repos, embedder, WithBatchSize(2), WithPoolSize(2), WithProgress(&progress))
	ctx := context.Background()

	stored, err := p.IngestMessages(ctx, testMessages())
	require.NoError(t, err)
	assert.Equal(t, 5, stored)
	assert.Equal(t, 3, embedder.CallCount(), "one embedding request per batch")

	count, err := repos.messages.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	msg, err := repos.messages.GetMessage(ctx, "m3")
	require.NoError(t, err)
	require.Len(t, msg.Vector, mock.Dimensions)
	assert.InDelta(t, 1.0, norm(msg.Vector), 1e-5)

	users, err := repos.messages.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)

	assert.Contains(t, progress.String(), "Messages: 5/5")
}

func TestIngestMessages_KeepsExistingVectors(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()
	p := newTestPipeline(t, repos, embedder)

	msgs := testMessages()[:1]
	msgs[0].Vector = []float32{3, 4}

	stored, err := p.IngestMessages(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Zero(t, embedder.CallCount())

	msg, err := repos.messages.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, msg.Vector)
}

func TestIngestMessages_RejectsInvalidBeforeWriting(t *testing.T) {
	repos := newTestRepos(t)
	p := newTestPipeline(t, repos, mock.NewMockEmbedder())

	msgs := testMessages()
	msgs[3].Text = ""

	stored, err := p.IngestMessages(context.Background(), msgs)
	assert.ErrorIs(t, err, core.ErrInvalidMessage)
	assert.ErrorIs(t, err, core.ErrEmptyText)
	assert.Zero(t, stored)

	count, err := repos.messages.CountMessages(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestMessages_RetriesEmbedding(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("rate limited")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.HashVector(text, 8)
		}
		return out, nil
	}
	p := newTestPipeline(t, repos, embedder, WithPoolSize(1))

	stored, err := p.IngestMessages(context.Background(), testMessages())
	require.NoError(t, err)
	assert.Equal(t, 5, stored)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIngestMessages_EmbeddingFailure(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("embedding service down")
	}
	p := newTestPipeline(t, repos, embedder, WithRetry(2, time.Millisecond))

	stored, err := p.IngestMessages(context.Background(), testMessages())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
	assert.Zero(t, stored)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestIngestMessages_EmbeddingCountMismatch(t *testing.T) {
	repos := newTestRepos(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}
	p := newTestPipeline(t, repos, embedder)

	_, err := p.IngestMessages(context.Background(), testMessages())
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}

func TestIngestMessages_Empty(t *testing.T) {
	p := newTestPipeline(t, newTestRepos(t), mock.NewMockEmbedder())
	stored, err := p.IngestMessages(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stored)
}

func TestIngestTriples(t *testing.T) {
	repos := newTestRepos(t)
	p := newTestPipeline(t, repos, mock.NewMockEmbedder())
	ctx := context.Background()

	_, err := p.IngestMessages(ctx, testMessages())
	require.NoError(t, err)

	stats, err := p.IngestTriples(ctx, []TripleRecord{
		{Subject: "Hans Müller", Relationship: "PREFERS", Object: "Italian cuisine", MessageID: "m1"},
		{Subject: "hans muller", Relationship: "rented_booked", Object: "Nobu", MessageID: "m2"},
		{Subject: "I", Relationship: "PREFERS", Object: "aisle seats", MessageID: "m3"},
		{Subject: "Vikram Desai", Relationship: "OWNS", Object: "Tesla", MessageID: "missing"},
		{Subject: "Vikram Desai", Relationship: "LIKES", Object: "Porsche", MessageID: "m4"},
		{Subject: "Vikram Desai", Relationship: "OWNS", Object: "  ", MessageID: "m4"},
		{Subject: "Nobody", Relationship: "OWNS", Object: "Boat", MessageID: "missing"},
		{Subject: "Amira Desai", Relationship: "ATTENDING_EVENT", Object: "opera", MessageID: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, TripleStats{Stored: 4, Skipped: 4}, stats)

	hans, err := repos.graph.GetRelationships(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, hans, 2)

	layla, err := repos.graph.GetRelationships(ctx, "u2", nil)
	require.NoError(t, err)
	require.Len(t, layla, 1)
	assert.Equal(t, "aisle seats", layla[0].Object)

	vikram, err := repos.graph.GetRelationships(ctx, "u3", nil)
	require.NoError(t, err)
	require.Len(t, vikram, 1)
	assert.Equal(t, "Tesla", vikram[0].Object)

	owners, err := repos.graph.EntityIndexLookup(ctx, "tesla")
	require.NoError(t, err)
	assert.Equal(t, []core.UserID{"u3"}, owners)
}

func TestResolveSubject(t *testing.T) {
	hans := core.UserIdentity{ID: "u1", DisplayName: "Hans Müller"}
	layla := core.UserIdentity{ID: "u2", DisplayName: "Layla Kawaguchi"}
	vikram := core.UserIdentity{ID: "u3", DisplayName: "Vikram Desai"}
	byName := map[string][]core.UserIdentity{
		"hans muller":     {hans},
		"layla kawaguchi": {layla},
		"vikram desai":    {vikram, {ID: "u9", DisplayName: "Vikram Desai"}},
	}
	source := &core.Message{ID: "m1", UserID: "u1", UserDisplayName: "Hans Müller"}

	tests := []struct {
		name    string
		subject string
		source  *core.Message
		want    core.UserIdentity
		ok      bool
	}{
		{"author by name", "Hans Müller", source, hans, true},
		{"author by empty subject", "", source, hans, true},
		{"other known user", "Layla Kawaguchi", source, layla, true},
		{"unknown subject falls back to author", "my wife", source, hans, true},
		{"known user without source", "Layla Kawaguchi", nil, layla, true},
		{"ambiguous name without source", "Vikram Desai", nil, core.UserIdentity{}, false},
		{"unknown without source", "Nobody", nil, core.UserIdentity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveSubject(tt.subject, tt.source, byName)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float32{0.6, 0.8}, normalizeVector([]float32{3, 4}))
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
	assert.Empty(t, normalizeVector(nil))
}
