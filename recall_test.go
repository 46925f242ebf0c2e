package recall

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/recall/ai/mock"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/query"
	"github.com/poiesic/recall/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ server.Engine = (*Engine)(nil)

const corpus = `[
  {"id": "m1", "user_id": "u1", "user_name": "Hans Müller", "timestamp": "2024-11-01T08:00:00Z", "message": "I prefer aisle seats on long flights."},
  {"id": "m2", "user_id": "u1", "user_name": "Hans Müller", "timestamp": "2024-11-02T08:00:00Z", "message": "Book a table at Nobu for Friday."},
  {"id": "m3", "user_id": "u2", "user_name": "Layla Kawaguchi", "timestamp": "2024-11-03T08:00:00Z", "message": "I prefer window seats when flying to Tokyo."},
  {"id": "m4", "user_id": "u2", "user_name": "Layla Kawaguchi", "timestamp": "2024-11-04T08:00:00Z", "message": "Reserve the opera box for Saturday."},
  {"id": "m5", "user_id": "u3", "user_name": "Vikram Desai", "timestamp": "2024-11-05T08:00:00Z", "message": "I own a Tesla and a Porsche."},
  {"id": "m6", "user_id": "u4", "user_name": "Amira Desai", "timestamp": "2024-11-06T08:00:00Z", "message": "Please arrange a private tour of the Louvre."},
  {"id": "m7", "user_id": "u1", "user_name": "Hans Müller", "timestamp": "2024-11-07T08:00:00Z", "message": "My Ferrari needs servicing."}
]`

const triples = `
{"subject": "Hans Müller", "relationship": "PREFERS", "object": "aisle seats", "message_id": "m1"}
{"subject": "Hans Müller", "relationship": "RENTED_BOOKED", "object": "Nobu", "message_id": "m2"}
{"subject": "Layla Kawaguchi", "relationship": "PREFERS", "object": "window seats", "message_id": "m3"}
{"subject": "Layla Kawaguchi", "relationship": "ATTENDING_EVENT", "object": "opera", "message_id": "m4"}
{"subject": "Vikram Desai", "relationship": "OWNS", "object": "Tesla", "message_id": "m5"}
{"subject": "Vikram Desai", "relationship": "OWNS", "object": "Porsche", "message_id": "m5"}
{"subject": "Amira Desai", "relationship": "PLANNING_TRIP", "object": "Louvre", "message_id": "m6"}
{"subject": "Hans Müller", "relationship": "OWNS", "object": "Ferrari", "message_id": "m7"}
`

func newMockProvider() *mock.MockProvider {
	return mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockDecomposer(), mock.NewMockGenerator()).(*mock.MockProvider)
}

func ingestCorpus(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()

	msgs, err := ingestion.ReadMessages(strings.NewReader(corpus))
	require.NoError(t, err)
	stored, err := e.IngestMessages(ctx, msgs)
	require.NoError(t, err)
	require.Equal(t, 7, stored)

	records, err := ingestion.ReadTriples(strings.NewReader(triples))
	require.NoError(t, err)
	stats, err := e.IngestTriples(ctx, records)
	require.NoError(t, err)
	require.Equal(t, ingestion.TripleStats{Stored: 8}, stats)
}

func newTestEngine(t *testing.T, provider *mock.MockProvider, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithMemoryStorage(), WithAIProvider(provider), WithPoolSize(2)}, opts...)
	e, err := NewEngine("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	ingestCorpus(t, e)
	return e
}

func resultIDs(results []core.RankedResult) []core.MessageID {
	out := make([]core.MessageID, len(results))
	for i, r := range results {
		out[i] = r.Message.ID
	}
	return out
}

func TestEngine_Stats(t *testing.T) {
	e := newTestEngine(t, newMockProvider())

	stats, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Messages)
	assert.Equal(t, 8, stats.Triples)
	assert.Equal(t, 4, stats.Users)
	assert.Positive(t, stats.Terms)

	assert.ElementsMatch(t, []string{"Hans Müller", "Layla Kawaguchi", "Vikram Desai", "Amira Desai"}, e.Users())
}

func TestEngine_SearchPrecise(t *testing.T) {
	e := newTestEngine(t, newMockProvider())

	result, err := e.Search(context.Background(), "What are Hans's flight preferences?")
	require.NoError(t, err)

	require.Len(t, result.Plans, 1)
	plan := result.Plans[0]
	assert.Equal(t, core.EntitySpecificPrecise, plan.Plan.Type)
	require.NotNil(t, plan.UserFilter)
	assert.Equal(t, core.UserID("u1"), *plan.UserFilter)

	require.NotEmpty(t, result.Results)
	assert.Equal(t, core.MessageID("m1"), result.Results[0].Message.ID)
	assert.Equal(t, 1, result.Results[0].Sources.Graph)
	for _, r := range result.Results {
		assert.Equal(t, core.UserID("u1"), r.Message.UserID)
	}
}

func TestEngine_SearchAggregation(t *testing.T) {
	e := newTestEngine(t, newMockProvider())

	result, err := e.Search(context.Background(), "Which members own a Tesla?")
	require.NoError(t, err)

	require.Len(t, result.Plans, 1)
	assert.Equal(t, core.Aggregation, result.Plans[0].Plan.Type)
	assert.True(t, result.Plans[0].Plan.Diversity.Enabled)
	assert.Nil(t, result.Plans[0].UserFilter)

	require.NotEmpty(t, result.Results)
	top := result.Results[0]
	assert.Equal(t, core.MessageID("m5"), top.Message.ID)
	assert.Equal(t, 1, top.Sources.Lexical)
	assert.Equal(t, 1, top.Sources.Graph)

	perUser := make(map[core.UserID]int)
	for _, r := range result.Results {
		perUser[r.Message.UserID]++
	}
	for user, n := range perUser {
		assert.LessOrEqual(t, n, 2, "user %s", user)
	}
}

func TestEngine_SearchComparisonFallsBackToRules(t *testing.T) {
	provider := newMockProvider()
	provider.GetMockDecomposer().DecomposeFunc = func(ctx context.Context, query string, knownUsers []string) ([]string, error) {
		return nil, errors.New("model unavailable")
	}
	e := newTestEngine(t, provider)

	result, err := e.Search(context.Background(), "Compare the flight preferences of Hans and Layla")
	require.NoError(t, err)

	require.Len(t, result.Plans, 2)
	assert.Equal(t, "What are Hans Müller's flight preferences?", result.Plans[0].Plan.Query)
	assert.Equal(t, "What are Layla Kawaguchi's flight preferences?", result.Plans[1].Plan.Query)
	require.NotNil(t, result.Plans[1].UserFilter)
	assert.Equal(t, core.UserID("u2"), *result.Plans[1].UserFilter)

	require.GreaterOrEqual(t, len(result.Results), 2)
	assert.Equal(t, []core.MessageID{"m1", "m3"}, resultIDs(result.Results[:2]))
}

func TestEngine_SearchUsesLLMDecomposition(t *testing.T) {
	provider := newMockProvider()
	var known []string
	provider.GetMockDecomposer().DecomposeFunc = func(ctx context.Context, query string, knownUsers []string) ([]string, error) {
		known = knownUsers
		return []string{"What are Vikram Desai's cars?", "What are Hans Müller's cars?"}, nil
	}
	e := newTestEngine(t, provider)

	plans := e.Explain(context.Background(), "Do Vikram and Hans own the same cars?")
	require.Len(t, plans, 2)
	assert.Equal(t, "What are Vikram Desai's cars?", plans[0].Query)
	assert.Equal(t, core.EntitySpecificBroad, plans[0].Type)
	assert.ElementsMatch(t, e.Users(), known)
}

func TestEngine_Ask(t *testing.T) {
	provider := newMockProvider()
	e := newTestEngine(t, provider)

	answer, err := e.Ask(context.Background(), "Which members own a Tesla?")
	require.NoError(t, err)
	assert.Equal(t, "mock", answer.Model)
	assert.Equal(t, "Which members own a Tesla?", answer.Query)
	require.NotEmpty(t, answer.Sources)
	assert.Equal(t, core.MessageID("m5"), answer.Sources[0].Message.ID)
	assert.Equal(t, 1, provider.GetMockGenerator().CallCount())
}

func TestEngine_TopK(t *testing.T) {
	e := newTestEngine(t, newMockProvider(), WithTopK(1))

	result, err := e.Search(context.Background(), "Which members own a Tesla?")
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{"m5"}, resultIDs(result.Results))
}

func TestEngine_Profiles(t *testing.T) {
	profiles := query.DefaultProfiles()
	aggregation := profiles[core.Aggregation]
	aggregation.Diversity.Enabled = false
	profiles[core.Aggregation] = aggregation

	e := newTestEngine(t, newMockProvider(), WithProfiles(profiles))
	plans := e.Explain(context.Background(), "Which members own a Tesla?")
	require.Len(t, plans, 1)
	assert.False(t, plans[0].Diversity.Enabled)
}

func TestEngine_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	provider := newMockProvider()

	e, err := NewEngine(path, WithAIProvider(provider))
	require.NoError(t, err)
	ingestCorpus(t, e)
	require.NoError(t, e.Close())

	reopened, err := NewEngine(path, WithAIProvider(provider))
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Messages: 7, Triples: 8, Users: 4, Terms: stats.Terms}, stats)

	result, err := reopened.Search(context.Background(), "Which members own a Tesla?")
	require.NoError(t, err)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, core.MessageID("m5"), result.Results[0].Message.ID)
}

func TestEngine_IngestRejectsInvalidMessages(t *testing.T) {
	e := newTestEngine(t, newMockProvider())

	_, err := e.IngestMessages(context.Background(), []*core.Message{
		{ID: "m9", UserID: "u9", UserDisplayName: "Thiago Monteiro", Text: "Future plans", Timestamp: time.Now().Add(time.Hour)},
	})
	assert.ErrorIs(t, err, core.ErrInvalidTimestamp)
	assert.NotContains(t, e.Users(), "Thiago Monteiro")
}

func TestEngine_IngestAddsNewUsers(t *testing.T) {
	e := newTestEngine(t, newMockProvider())

	stored, err := e.IngestMessages(context.Background(), []*core.Message{
		{ID: "m9", UserID: "u9", UserDisplayName: "Thiago Monteiro", Text: "Confirm my bookings for the sailing charter in Croatia."},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
	assert.Contains(t, e.Users(), "Thiago Monteiro")

	result, err := e.Search(context.Background(), "What are Thiago's bookings?")
	require.NoError(t, err)
	require.NotNil(t, result.Plans[0].UserFilter)
	assert.Equal(t, core.UserID("u9"), *result.Plans[0].UserFilter)
	assert.Equal(t, []core.MessageID{"m9"}, resultIDs(result.Results))
}

func TestNewEngine_InvalidOptions(t *testing.T) {
	for name, opt := range map[string]Option{
		"pool size":       WithPoolSize(0),
		"top k":           WithTopK(0),
		"fuzzy threshold": WithFuzzyThreshold(1.5),
		"nil config":      WithAIConfig(nil),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewEngine("", WithMemoryStorage(), WithAIProvider(newMockProvider()), opt)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

func TestEngine_ReembedAfterModelChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")

	e, err := NewEngine(path, WithAIProvider(newMockProvider()))
	require.NoError(t, err)
	ingestCorpus(t, e)
	require.NoError(t, e.Close())

	small := mock.NewMockEmbedder()
	small.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return mock.HashVector(text, 16), nil
	}
	small.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.HashVector(text, 16)
		}
		return out, nil
	}
	provider := mock.NewMockProviderWithServices(small, mock.NewMockDecomposer(), mock.NewMockGenerator())

	reopened, err := NewEngine(path, WithAIProvider(provider))
	require.NoError(t, err)
	defer reopened.Close()
	ctx := context.Background()

	// Stored vectors no longer match the embedder, so only lexical and graph contribute
	before, err := reopened.Search(ctx, "Which members own a Tesla?")
	require.NoError(t, err)
	require.NotEmpty(t, before.Results)
	for _, r := range before.Results {
		assert.Zero(t, r.Sources.Semantic)
	}

	count, err := reopened.Reembed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	after, err := reopened.Search(ctx, "Which members own a Tesla?")
	require.NoError(t, err)
	require.NotEmpty(t, after.Results)
	assert.Equal(t, core.MessageID("m5"), after.Results[0].Message.ID)
	assert.Positive(t, after.Results[0].Sources.Semantic)
}
