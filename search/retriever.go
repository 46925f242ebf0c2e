package search

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/fusion"
	"github.com/poiesic/recall/metrics"
)

// Signal names used in logs, metrics and Monitor callbacks.
const (
	SignalSemantic = "semantic"
	SignalLexical  = "lexical"
	SignalGraph    = "graph"
)

const (
	// DefaultTopK is the number of results returned per query.
	DefaultTopK = 10

	// DefaultCandidateK is the number of candidates requested from each signal.
	DefaultCandidateK = 50
)

// SemanticSearcher ranks messages by embedding similarity.
type SemanticSearcher interface {
	Search(ctx context.Context, text string, topK int, userFilter *core.UserID) ([]core.ScoredMessage, error)
}

// LexicalSearcher ranks messages by term overlap.
type LexicalSearcher interface {
	Search(ctx context.Context, text string, topK int, userFilter *core.UserID) ([]core.ScoredMessage, error)
}

// GraphSearcher finds messages through user relationships, in discovery order.
type GraphSearcher interface {
	Search(ctx context.Context, text string, topK int) ([]*core.Message, error)
}

// Planner turns query text into one or more plans.
type Planner interface {
	Plan(ctx context.Context, text string) []core.QueryPlan
}

// UserFinder locates known users named in text, in order of appearance.
type UserFinder interface {
	FindAll(text string) []core.UserIdentity
}

// PlanResult is the retrieval trace of a single plan.
type PlanResult struct {
	Plan       core.QueryPlan
	UserFilter *core.UserID
	Semantic   []*core.Message
	Lexical    []*core.Message
	Graph      []*core.Message
	// Fused is the full fused ranking; Ranked is its top-k.
	Fused  []core.RankedResult
	Ranked []core.RankedResult
}

// Result is the outcome of a search.
type Result struct {
	Query   string
	Plans   []PlanResult
	Results []core.RankedResult
}

// Retriever runs hybrid retrieval for each plan of a query.
type Retriever struct {
	planner    Planner
	semantic   SemanticSearcher
	lexical    LexicalSearcher
	graph      GraphSearcher
	users      UserFinder
	topK       int
	candidateK int
	rrfK       float64
	pool       *ants.Pool
	monitor    Monitor
	logger     *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithTopK sets the number of results returned. Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return ErrInvalidOption
		}
		r.topK = k
		return nil
	}
}

// WithCandidateK sets how many candidates each signal returns.
// Default is DefaultCandidateK.
func WithCandidateK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return ErrInvalidOption
		}
		r.candidateK = k
		return nil
	}
}

// WithRRFK sets the rank fusion constant. Default is fusion.DefaultK.
func WithRRFK(k float64) Option {
	return func(r *Retriever) error {
		if k <= 0 {
			return ErrInvalidOption
		}
		r.rrfK = k
		return nil
	}
}

// WithMonitor installs a monitor for every search.
func WithMonitor(monitor Monitor) Option {
	return func(r *Retriever) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		r.monitor = monitor
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent signal retrieval.
// Default is runtime.NumCPU(), with a minimum of 3.
func WithPoolSize(size int) Option {
	return func(r *Retriever) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// NewRetriever creates a retriever. users supplies the user filter for
// entity-specific plans.
func NewRetriever(
	planner Planner,
	semantic SemanticSearcher,
	lexical LexicalSearcher,
	graph GraphSearcher,
	users UserFinder,
	opts ...Option,
) (*Retriever, error) {
	if planner == nil {
		return nil, ErrPlannerRequired
	}
	if semantic == nil {
		return nil, ErrSemanticSearcherRequired
	}
	if lexical == nil {
		return nil, ErrLexicalSearcherRequired
	}
	if graph == nil {
		return nil, ErrGraphSearcherRequired
	}
	if users == nil {
		return nil, ErrResolverRequired
	}

	poolSize := runtime.NumCPU()
	if poolSize < 3 {
		poolSize = 3
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Retriever{
		planner:    planner,
		semantic:   semantic,
		lexical:    lexical,
		graph:      graph,
		users:      users,
		topK:       DefaultTopK,
		candidateK: DefaultCandidateK,
		rrfK:       fusion.DefaultK,
		pool:       pool,
		monitor:    &noopMonitor{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			r.Release()
			return nil, err
		}
	}
	return r, nil
}

// TopK returns the configured result count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Search plans text, retrieves each plan, composes the per-plan rankings and
// diversifies the merged list when a plan asks for it.
// Signal failures degrade to empty lists; only context cancellation is
// returned as an error.
func (r *Retriever) Search(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	r.monitor.Start(text)
	plans := r.planner.Plan(ctx, text)
	r.monitor.Planned(plans)

	result := &Result{Query: text, Plans: make([]PlanResult, 0, len(plans))}
	rankings := make([][]core.RankedResult, 0, len(plans))
	var diversity core.DiversityPolicy
	for _, plan := range plans {
		pr := r.retrieve(ctx, plan)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.monitor.Fused(plan, pr.Ranked)
		result.Plans = append(result.Plans, pr)
		rankings = append(rankings, pr.Fused)
		diversity = mergeDiversity(diversity, plan.Diversity)
	}

	merged := fusion.Compose(rankings, 0)
	if diversity.Enabled {
		result.Results = fusion.Diversify(merged, diversity.MaxPerUser, r.topK)
	} else {
		result.Results = fusion.Truncate(merged, r.topK)
	}
	r.monitor.Finish(result.Results)

	r.logger.Debug("search complete",
		"query", text,
		"plans", len(plans),
		"results", len(result.Results),
		"elapsed", time.Since(start))
	return result, nil
}

// retrieve runs the three signals for plan concurrently and fuses them.
func (r *Retriever) retrieve(ctx context.Context, plan core.QueryPlan) PlanResult {
	pr := PlanResult{Plan: plan, UserFilter: r.userFilter(plan)}

	var semantic, lexical []core.ScoredMessage
	var wg sync.WaitGroup

	r.run(&wg, plan, SignalSemantic, func() (int, error) {
		res, err := r.semantic.Search(ctx, plan.Query, r.candidateK, pr.UserFilter)
		if err == nil {
			semantic = res
		}
		return len(res), err
	})
	r.run(&wg, plan, SignalLexical, func() (int, error) {
		res, err := r.lexical.Search(ctx, plan.Query, r.candidateK, pr.UserFilter)
		if err == nil {
			lexical = res
		}
		return len(res), err
	})
	r.run(&wg, plan, SignalGraph, func() (int, error) {
		res, err := r.graph.Search(ctx, plan.Query, r.candidateK)
		if err == nil {
			pr.Graph = res
		}
		return len(res), err
	})
	wg.Wait()

	pr.Semantic = fusion.Messages(semantic)
	pr.Lexical = fusion.Messages(lexical)
	pr.Fused = fusion.Fuse(pr.Semantic, pr.Lexical, pr.Graph, r.rrfK, plan.Weights)
	pr.Ranked = fusion.Truncate(pr.Fused, r.topK)

	r.logger.Debug("plan retrieved",
		"query", plan.Query,
		"type", plan.Type,
		"semantic", len(pr.Semantic),
		"lexical", len(pr.Lexical),
		"graph", len(pr.Graph),
		"fused", len(pr.Fused))
	return pr
}

// mergeDiversity combines the policies of several plans. Diversity applies to
// the merged ranking when any plan enables it, with the tightest cap.
func mergeDiversity(acc, p core.DiversityPolicy) core.DiversityPolicy {
	if !p.Enabled {
		return acc
	}
	if !acc.Enabled || (p.MaxPerUser > 0 && (acc.MaxPerUser <= 0 || p.MaxPerUser < acc.MaxPerUser)) {
		acc.MaxPerUser = p.MaxPerUser
	}
	acc.Enabled = true
	return acc
}

// userFilter restricts entity-specific plans to the first user they name.
func (r *Retriever) userFilter(plan core.QueryPlan) *core.UserID {
	if plan.Type != core.EntitySpecificPrecise && plan.Type != core.EntitySpecificBroad {
		return nil
	}
	users := r.users.FindAll(plan.Query)
	if len(users) == 0 {
		return nil
	}
	id := users[0].ID
	return &id
}

// run executes fn on the pool, recording its outcome. A task the pool
// rejects runs on the calling goroutine.
func (r *Retriever) run(wg *sync.WaitGroup, plan core.QueryPlan, signal string, fn func() (int, error)) {
	wg.Add(1)
	task := func() {
		defer wg.Done()
		start := time.Now()
		n, err := fn()
		metrics.SignalDuration.WithLabelValues(signal).Observe(time.Since(start).Seconds())

		status := "ok"
		switch {
		case err != nil:
			status = "error"
			n = 0
			r.logger.Warn("retrieval signal failed, treating as empty", "signal", signal, "query", plan.Query, "err", err)
		case n == 0:
			status = "empty"
		}
		metrics.SignalRequestsTotal.WithLabelValues(signal, status).Inc()
		r.monitor.SignalDone(plan, signal, n, err)
	}

	if err := r.pool.Submit(task); err != nil {
		r.logger.Debug("worker pool rejected task, running inline", "signal", signal, "err", err)
		task()
	}
}

// Release releases the worker pool. The retriever should not be used after
// calling Release.
func (r *Retriever) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}
