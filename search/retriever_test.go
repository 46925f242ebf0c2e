package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/names"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitWeights = core.Weights{Semantic: 1, Lexical: 1, Graph: 1}

func msg(id string, user core.UserID) *core.Message {
	return &core.Message{ID: core.MessageID(id), UserID: user, Text: id}
}

func scored(msgs ...*core.Message) []core.ScoredMessage {
	out := make([]core.ScoredMessage, len(msgs))
	for i, m := range msgs {
		out[i] = core.ScoredMessage{Message: m, Score: float64(len(msgs) - i)}
	}
	return out
}

type stubPlanner struct {
	plans []core.QueryPlan
}

func (s *stubPlanner) Plan(_ context.Context, text string) []core.QueryPlan {
	if s.plans != nil {
		return s.plans
	}
	return []core.QueryPlan{{Query: text, Type: core.Conceptual, Weights: unitWeights}}
}

// stubSignal answers per query and records the user filters it receives.
type stubSignal struct {
	mu      sync.Mutex
	results map[string][]*core.Message
	err     error
	filters []*core.UserID
}

func (s *stubSignal) Search(_ context.Context, text string, topK int, userFilter *core.UserID) ([]core.ScoredMessage, error) {
	s.mu.Lock()
	s.filters = append(s.filters, userFilter)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	res := s.results[text]
	if len(res) > topK {
		res = res[:topK]
	}
	return scored(res...), nil
}

type stubGraph struct {
	results map[string][]*core.Message
	err     error
}

func (s *stubGraph) Search(_ context.Context, text string, _ int) ([]*core.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results[text], nil
}

type recordingMonitor struct {
	mu       sync.Mutex
	started  string
	planned  int
	signals  map[string]error
	fused    int
	finished int
}

func (m *recordingMonitor) Start(query string) { m.started = query }

func (m *recordingMonitor) Planned(plans []core.QueryPlan) { m.planned = len(plans) }

func (m *recordingMonitor) SignalDone(_ core.QueryPlan, signal string, _ int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signals == nil {
		m.signals = make(map[string]error)
	}
	m.signals[signal] = err
}

func (m *recordingMonitor) Fused(_ core.QueryPlan, _ []core.RankedResult) { m.fused++ }

func (m *recordingMonitor) Finish(results []core.RankedResult) { m.finished = len(results) }

func newTestResolver(t *testing.T) *names.Resolver {
	t.Helper()
	r, err := names.NewResolver()
	require.NoError(t, err)
	r.Add(core.UserIdentity{ID: "u1", DisplayName: "Hans Müller"})
	r.Add(core.UserIdentity{ID: "u2", DisplayName: "Layla Kawaguchi"})
	return r
}

func newTestRetriever(t *testing.T, planner Planner, sem, lex *stubSignal, graph *stubGraph, opts ...Option) *Retriever {
	t.Helper()
	r, err := NewRetriever(planner, sem, lex, graph, newTestResolver(t), opts...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func ids(results []core.RankedResult) []core.MessageID {
	out := make([]core.MessageID, 0, len(results))
	for _, r := range results {
		out = append(out, r.Message.ID)
	}
	return out
}

func TestNewRetriever_RequiresDependencies(t *testing.T) {
	resolver := newTestResolver(t)
	planner := &stubPlanner{}
	sem, lex, graph := &stubSignal{}, &stubSignal{}, &stubGraph{}

	_, err := NewRetriever(nil, sem, lex, graph, resolver)
	assert.ErrorIs(t, err, ErrPlannerRequired)
	_, err = NewRetriever(planner, nil, lex, graph, resolver)
	assert.ErrorIs(t, err, ErrSemanticSearcherRequired)
	_, err = NewRetriever(planner, sem, nil, graph, resolver)
	assert.ErrorIs(t, err, ErrLexicalSearcherRequired)
	_, err = NewRetriever(planner, sem, lex, nil, resolver)
	assert.ErrorIs(t, err, ErrGraphSearcherRequired)
	_, err = NewRetriever(planner, sem, lex, graph, nil)
	assert.ErrorIs(t, err, ErrResolverRequired)
}

func TestNewRetriever_InvalidOptions(t *testing.T) {
	resolver := newTestResolver(t)
	for _, opt := range []Option{WithTopK(0), WithCandidateK(-1), WithRRFK(0)} {
		_, err := NewRetriever(&stubPlanner{}, &stubSignal{}, &stubSignal{}, &stubGraph{}, resolver, opt)
		assert.ErrorIs(t, err, ErrInvalidOption)
	}
}

func TestSearch_FusesSignals(t *testing.T) {
	a, b, c, d := msg("a", "u1"), msg("b", "u1"), msg("c", "u2"), msg("d", "u2")
	sem := &stubSignal{results: map[string][]*core.Message{"q": {a, b}}}
	lex := &stubSignal{results: map[string][]*core.Message{"q": {b, c}}}
	graph := &stubGraph{results: map[string][]*core.Message{"q": {d}}}
	r := newTestRetriever(t, &stubPlanner{}, sem, lex, graph)

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)

	// b: 1/62 + 1/61; a and d: 1/61; c: 1/62
	assert.Equal(t, []core.MessageID{"b", "a", "d", "c"}, ids(result.Results))
	assert.Equal(t, core.SourceRanks{Semantic: 2, Lexical: 1}, result.Results[0].Sources)
	assert.InDelta(t, 1.0/62+1.0/61, result.Results[0].Score, 1e-12)

	require.Len(t, result.Plans, 1)
	plan := result.Plans[0]
	assert.Nil(t, plan.UserFilter)
	assert.Len(t, plan.Semantic, 2)
	assert.Len(t, plan.Lexical, 2)
	assert.Len(t, plan.Graph, 1)
	assert.Len(t, plan.Fused, 4)
}

func TestSearch_AppliesPlanWeights(t *testing.T) {
	a, b := msg("a", "u1"), msg("b", "u2")
	sem := &stubSignal{results: map[string][]*core.Message{"q": {a}}}
	lex := &stubSignal{results: map[string][]*core.Message{"q": {b}}}
	planner := &stubPlanner{plans: []core.QueryPlan{{
		Query:   "q",
		Type:    core.Conceptual,
		Weights: core.Weights{Semantic: 1.0, Lexical: 1.2, Graph: 1.0},
	}}}
	r := newTestRetriever(t, planner, sem, lex, &stubGraph{})

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{"b", "a"}, ids(result.Results))
	assert.InDelta(t, 1.2/61, result.Results[0].Score, 1e-12)
}

func TestSearch_FailedSignalIsEmpty(t *testing.T) {
	a, b := msg("a", "u1"), msg("b", "u2")
	sem := &stubSignal{results: map[string][]*core.Message{"q": {a}}}
	lex := &stubSignal{err: errors.New("index unavailable")}
	graph := &stubGraph{results: map[string][]*core.Message{"q": {b}}, err: errors.New("graph down")}
	monitor := &recordingMonitor{}
	r := newTestRetriever(t, &stubPlanner{}, sem, lex, graph, WithMonitor(monitor))

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{"a"}, ids(result.Results))
	assert.Empty(t, result.Plans[0].Lexical)
	assert.Empty(t, result.Plans[0].Graph)

	assert.Equal(t, "q", monitor.started)
	assert.Equal(t, 1, monitor.planned)
	assert.Equal(t, 1, monitor.fused)
	assert.Equal(t, 1, monitor.finished)
	assert.NoError(t, monitor.signals[SignalSemantic])
	assert.Error(t, monitor.signals[SignalLexical])
	assert.Error(t, monitor.signals[SignalGraph])
}

func TestSearch_UserFilter(t *testing.T) {
	tests := []struct {
		name     string
		plan     core.QueryPlan
		want     core.UserID
		wantNone bool
	}{
		{
			name: "precise plan filters to named user",
			plan: core.QueryPlan{Query: "What are Hans's seating preferences?", Type: core.EntitySpecificPrecise},
			want: "u1",
		},
		{
			name: "broad plan filters to first named user",
			plan: core.QueryPlan{Query: "Tell me about Layla and Hans", Type: core.EntitySpecificBroad},
			want: "u2",
		},
		{
			name:     "aggregation plan is unfiltered",
			plan:     core.QueryPlan{Query: "Which members like Hans's restaurant?", Type: core.Aggregation},
			wantNone: true,
		},
		{
			name:     "entity plan without a known user is unfiltered",
			plan:     core.QueryPlan{Query: "What about the weather?", Type: core.EntitySpecificBroad},
			wantNone: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.plan.Weights = unitWeights
			sem, lex := &stubSignal{}, &stubSignal{}
			r := newTestRetriever(t, &stubPlanner{plans: []core.QueryPlan{tt.plan}}, sem, lex, &stubGraph{})

			result, err := r.Search(context.Background(), tt.plan.Query)
			require.NoError(t, err)
			require.Len(t, sem.filters, 1)
			require.Len(t, lex.filters, 1)

			if tt.wantNone {
				assert.Nil(t, result.Plans[0].UserFilter)
				assert.Nil(t, sem.filters[0])
				assert.Nil(t, lex.filters[0])
				return
			}
			require.NotNil(t, result.Plans[0].UserFilter)
			assert.Equal(t, tt.want, *result.Plans[0].UserFilter)
			require.NotNil(t, sem.filters[0])
			assert.Equal(t, tt.want, *sem.filters[0])
			require.NotNil(t, lex.filters[0])
			assert.Equal(t, tt.want, *lex.filters[0])
		})
	}
}

func TestSearch_DiversityCapsPerUser(t *testing.T) {
	h1, h2, h3, h4 := msg("h1", "u1"), msg("h2", "u1"), msg("h3", "u1"), msg("h4", "u1")
	l1 := msg("l1", "u2")
	sem := &stubSignal{results: map[string][]*core.Message{"q": {h1, h2, h3, h4, l1}}}

	plan := core.QueryPlan{
		Query:     "q",
		Type:      core.Aggregation,
		Weights:   unitWeights,
		Diversity: core.DiversityPolicy{Enabled: true, MaxPerUser: 2},
	}
	r := newTestRetriever(t, &stubPlanner{plans: []core.QueryPlan{plan}}, sem, &stubSignal{}, &stubGraph{})

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{"h1", "h2", "l1"}, ids(result.Results))
	assert.Len(t, result.Plans[0].Fused, 5)

	plan.Diversity.Enabled = false
	r = newTestRetriever(t, &stubPlanner{plans: []core.QueryPlan{plan}}, sem, &stubSignal{}, &stubGraph{}, WithTopK(3))
	result, err = r.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{"h1", "h2", "h3"}, ids(result.Results))
}

func TestSearch_DiversifiesAfterComposing(t *testing.T) {
	h1, h2, h3 := msg("h1", "u1"), msg("h2", "u1"), msg("h3", "u1")
	l1 := msg("l1", "u2")
	sem := &stubSignal{results: map[string][]*core.Message{
		"hans": {h1, h2},
		"all":  {h3, l1},
	}}
	planner := &stubPlanner{plans: []core.QueryPlan{
		{Query: "hans", Type: core.EntitySpecificPrecise, Weights: unitWeights},
		{
			Query:     "all",
			Type:      core.Aggregation,
			Weights:   unitWeights,
			Diversity: core.DiversityPolicy{Enabled: true, MaxPerUser: 2},
		},
	}}
	r := newTestRetriever(t, planner, sem, &stubSignal{}, &stubGraph{})

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	// Composed order is h1 h3 h2 l1; the cap applies across both sub-queries.
	assert.Equal(t, []core.MessageID{"h1", "h3", "l1"}, ids(result.Results))
	assert.Equal(t, []core.MessageID{"h1", "h2"}, ids(result.Plans[0].Ranked))
}

func TestMergeDiversity(t *testing.T) {
	off := core.DiversityPolicy{}
	two := core.DiversityPolicy{Enabled: true, MaxPerUser: 2}
	three := core.DiversityPolicy{Enabled: true, MaxPerUser: 3}

	assert.Equal(t, off, mergeDiversity(off, off))
	assert.Equal(t, three, mergeDiversity(off, three))
	assert.Equal(t, two, mergeDiversity(three, two))
	assert.Equal(t, two, mergeDiversity(two, three))
	assert.Equal(t, two, mergeDiversity(two, off))
}

func TestSearch_ComposesSubQueries(t *testing.T) {
	h1, h2 := msg("h1", "u1"), msg("h2", "u1")
	l1, l2 := msg("l1", "u2"), msg("l2", "u2")
	sem := &stubSignal{results: map[string][]*core.Message{
		"What are Hans Müller's preferences?":     {h1, h2},
		"What are Layla Kawaguchi's preferences?": {l1, l2},
	}}
	planner := &stubPlanner{plans: []core.QueryPlan{
		{Query: "What are Hans Müller's preferences?", Type: core.EntitySpecificPrecise, Weights: unitWeights},
		{Query: "What are Layla Kawaguchi's preferences?", Type: core.EntitySpecificPrecise, Weights: unitWeights},
	}}
	r := newTestRetriever(t, planner, sem, &stubSignal{}, &stubGraph{}, WithTopK(3))

	result, err := r.Search(context.Background(), "Compare Hans and Layla")
	require.NoError(t, err)
	assert.Equal(t, "Compare Hans and Layla", result.Query)
	require.Len(t, result.Plans, 2)
	assert.Equal(t, []core.MessageID{"h1", "l1", "h2"}, ids(result.Results))
}

func TestSearch_TopKLimitsResults(t *testing.T) {
	var msgs []*core.Message
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		msgs = append(msgs, msg(id, "u1"))
	}
	sem := &stubSignal{results: map[string][]*core.Message{"q": msgs}}
	r := newTestRetriever(t, &stubPlanner{}, sem, &stubSignal{}, &stubGraph{}, WithTopK(2), WithCandidateK(4))
	assert.Equal(t, 2, r.TopK())

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []core.MessageID{"a", "b"}, ids(result.Results))
	assert.Len(t, result.Plans[0].Semantic, 4)
}

func TestSearch_CancelledContext(t *testing.T) {
	r := newTestRetriever(t, &stubPlanner{}, &stubSignal{}, &stubSignal{}, &stubGraph{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Search(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_SmallPool(t *testing.T) {
	a := msg("a", "u1")
	sem := &stubSignal{results: map[string][]*core.Message{"q": {a}}}
	lex := &stubSignal{results: map[string][]*core.Message{"q": {a}}}
	graph := &stubGraph{results: map[string][]*core.Message{"q": {a}}}
	r := newTestRetriever(t, &stubPlanner{}, sem, lex, graph, WithPoolSize(1))

	result, err := r.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, core.SourceRanks{Semantic: 1, Lexical: 1, Graph: 1}, result.Results[0].Sources)
}
