// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package recall

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/ai/openai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/graph"
	"github.com/poiesic/recall/ingestion"
	"github.com/poiesic/recall/lexical"
	"github.com/poiesic/recall/names"
	"github.com/poiesic/recall/query"
	"github.com/poiesic/recall/search"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/storage/badger"
)

// Engine wires storage, the AI provider and the retrieval components into a
// single question-answering surface over the member message corpus.
type Engine struct {
	backend      *badger.Backend
	messages     storage.MessageRepository
	graph        storage.GraphRepository
	checkpoints  storage.CheckpointRepository
	provider     ai.AIProvider
	ownsProvider bool
	resolver     *names.Resolver
	index        *lexical.Index
	processor    *query.Processor
	retriever    *search.Retriever
	pipeline     *ingestion.Pipeline
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions) error

type engineOptions struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	profiles       query.ProfileSet
	fuzzyThreshold float64
	poolSize       int
	topK           int
	inMemory       bool
	progress       io.Writer
	logger         *slog.Logger
}

// WithAIConfig sets the configuration for the default OpenAI-compatible
// provider. Ignored when WithAIProvider is used, except for the
// decomposition timeout.
func WithAIConfig(config *ai.Config) Option {
	return func(o *engineOptions) error {
		if config == nil {
			return fmt.Errorf("%w: nil AI config", ErrInvalidOption)
		}
		o.aiConfig = config
		return nil
	}
}

// WithAIProvider supplies the AI provider. The engine does not close a
// provider passed this way.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) error {
		o.provider = provider
		return nil
	}
}

// WithProfiles replaces the per-query-type weight profiles.
func WithProfiles(profiles query.ProfileSet) Option {
	return func(o *engineOptions) error {
		if err := profiles.Validate(); err != nil {
			return err
		}
		o.profiles = profiles
		return nil
	}
}

// WithFuzzyThreshold sets the name resolver's similarity threshold.
func WithFuzzyThreshold(threshold float64) Option {
	return func(o *engineOptions) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("%w: fuzzy threshold %v", ErrInvalidOption, threshold)
		}
		o.fuzzyThreshold = threshold
		return nil
	}
}

// WithPoolSize sets the worker pool size for retrieval and ingestion.
func WithPoolSize(size int) Option {
	return func(o *engineOptions) error {
		if size < 1 {
			return fmt.Errorf("%w: pool size %d", ErrInvalidOption, size)
		}
		o.poolSize = size
		return nil
	}
}

// WithTopK sets the number of results returned per query.
func WithTopK(k int) Option {
	return func(o *engineOptions) error {
		if k < 1 {
			return fmt.Errorf("%w: topK %d", ErrInvalidOption, k)
		}
		o.topK = k
		return nil
	}
}

// WithMemoryStorage keeps all data in memory. The file path is ignored.
func WithMemoryStorage() Option {
	return func(o *engineOptions) error {
		o.inMemory = true
		return nil
	}
}

// WithProgress reports ingestion progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *engineOptions) error {
		o.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) error {
		o.logger = logger
		return nil
	}
}

// NewEngine opens the store at filePath and builds the in-memory name and
// lexical indexes from its contents.
func NewEngine(filePath string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	e := &Engine{backend: backend, logger: options.logger}
	if err := e.init(context.Background(), options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init(ctx context.Context, options *engineOptions) error {
	logger := options.logger

	messages, err := badger.NewMessageRepository(e.backend)
	if err != nil {
		return err
	}
	e.messages = messages

	graphRepo, err := badger.NewGraphRepository(e.backend)
	if err != nil {
		return err
	}
	e.graph = graphRepo

	checkpoints, err := badger.NewCheckpointRepository(e.backend)
	if err != nil {
		return err
	}
	e.checkpoints = checkpoints

	e.provider = options.provider
	if e.provider == nil {
		provider, err := openai.NewProvider(options.aiConfig)
		if err != nil {
			return err
		}
		e.provider = provider
		e.ownsProvider = true
	}
	embedder := e.provider.Embedder()
	if embedder == nil {
		return ErrEmbedderUnavailable
	}

	resolverOpts := []names.Option{names.WithLogger(logger.With("component", "names"))}
	if options.fuzzyThreshold > 0 {
		resolverOpts = append(resolverOpts, names.WithFuzzyThreshold(options.fuzzyThreshold))
	}
	e.resolver, err = names.NewResolver(resolverOpts...)
	if err != nil {
		return err
	}
	users, err := e.messages.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	for _, u := range users {
		e.addUser(u)
	}

	e.index, err = lexical.Build(ctx, e.messages, lexical.WithLogger(logger.With("component", "lexical")))
	if err != nil {
		return err
	}

	graphSearcher, err := graph.NewSearcher(e.graph, e.messages, e.resolver, graph.WithLogger(logger.With("component", "graph")))
	if err != nil {
		return err
	}

	classifierOpts := []query.ClassifierOption{query.WithClassifierLogger(logger.With("component", "classifier"))}
	if options.profiles != nil {
		classifierOpts = append(classifierOpts, query.WithProfiles(options.profiles))
	}
	classifier, err := query.NewClassifier(e.resolver, classifierOpts...)
	if err != nil {
		return err
	}

	rules, err := query.NewRuleDecomposer(e.resolver)
	if err != nil {
		return err
	}
	var primary query.Decomposer
	if llm := e.provider.Decomposer(); llm != nil {
		llmOpts := []query.LLMOption{query.WithLLMLogger(logger.With("component", "decomposer"))}
		if options.aiConfig.DecomposeTimeout > 0 {
			llmOpts = append(llmOpts, query.WithTimeout(options.aiConfig.DecomposeTimeout))
		}
		primary, err = query.NewLLMDecomposer(llm, e.resolver, llmOpts...)
		if err != nil {
			return err
		}
	}
	chain, err := query.NewChain(primary, rules, logger.With("component", "decomposer"))
	if err != nil {
		return err
	}

	e.processor, err = query.NewProcessor(chain, classifier, logger.With("component", "planner"))
	if err != nil {
		return err
	}

	semantic, err := search.NewVectorSearcher(embedder, e.messages, search.WithVectorLogger(logger.With("component", "semantic")))
	if err != nil {
		return err
	}

	retrieverOpts := []search.Option{search.WithLogger(logger.With("component", "retriever"))}
	if options.poolSize > 0 {
		retrieverOpts = append(retrieverOpts, search.WithPoolSize(options.poolSize))
	}
	if options.topK > 0 {
		retrieverOpts = append(retrieverOpts, search.WithTopK(options.topK))
	}
	e.retriever, err = search.NewRetriever(e.processor, semantic, e.index, graphSearcher, e.resolver, retrieverOpts...)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(logger.With("component", "ingestion")),
		ingestion.WithCheckpoints(e.checkpoints),
	}
	if options.poolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(options.poolSize))
	}
	if options.progress != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithProgress(options.progress))
	}
	e.pipeline, err = ingestion.NewPipeline(e.messages, e.graph, embedder, pipelineOpts...)
	if err != nil {
		return err
	}

	logger.Info("engine ready", "users", e.resolver.Len(), "documents", e.index.Len(), "terms", e.index.Terms())
	return nil
}

// Search answers text with a ranked list of messages and the per-plan trace.
func (e *Engine) Search(ctx context.Context, text string) (*search.Result, error) {
	return e.retriever.Search(ctx, text)
}

// Explain returns the plans text would be retrieved with, without retrieving.
func (e *Engine) Explain(ctx context.Context, text string) []core.QueryPlan {
	return e.processor.Plan(ctx, text)
}

// Ask retrieves messages for text and generates an answer grounded in them.
func (e *Engine) Ask(ctx context.Context, text string) (*ai.Answer, error) {
	generator := e.provider.Generator()
	if generator == nil {
		return nil, ErrGeneratorUnavailable
	}

	result, err := e.retriever.Search(ctx, text)
	if err != nil {
		return nil, err
	}
	return generator.GenerateAnswer(ctx, text, result.Results)
}

// IngestMessages stores msgs with their embeddings and makes them visible to
// retrieval. Returns the number of messages stored.
func (e *Engine) IngestMessages(ctx context.Context, msgs []*core.Message) (int, error) {
	stored, ingestErr := e.pipeline.IngestMessages(ctx, msgs)
	if stored == 0 {
		return 0, ingestErr
	}

	// A failed batch leaves the others stored, so index what storage holds
	ids := make([]core.MessageID, len(msgs))
	for i, msg := range msgs {
		ids[i] = msg.ID
	}
	present, err := e.messages.GetMessages(ctx, ids...)
	if err != nil {
		return stored, err
	}
	e.index.Add(present...)
	for _, msg := range present {
		e.addUser(core.UserIdentity{ID: msg.UserID, DisplayName: msg.UserDisplayName})
	}
	return stored, ingestErr
}

// IngestTriples links triple records to users and stores them.
func (e *Engine) IngestTriples(ctx context.Context, records []ingestion.TripleRecord) (ingestion.TripleStats, error) {
	return e.pipeline.IngestTriples(ctx, records)
}

// Reembed replaces every stored vector using the current embedder, resuming
// an interrupted run. Needed after switching embedding models.
func (e *Engine) Reembed(ctx context.Context) (int, error) {
	return e.pipeline.Reembed(ctx)
}

// Users returns the display names of known users in the order they were added.
func (e *Engine) Users() []string {
	return e.resolver.ListAll()
}

// Stats describes the contents of the engine.
type Stats struct {
	Messages int `json:"messages"`
	Triples  int `json:"triples"`
	Users    int `json:"users"`
	Terms    int `json:"terms"`
}

// Stats counts stored messages and triples and the indexed users and terms.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	messages, err := e.messages.CountMessages(ctx)
	if err != nil {
		return Stats{}, err
	}
	triples, err := e.graph.CountTriples(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Messages: messages,
		Triples:  triples,
		Users:    e.resolver.Len(),
		Terms:    e.index.Terms(),
	}, nil
}

func (e *Engine) addUser(identity core.UserIdentity) {
	if identity.ID == "" || identity.DisplayName == "" {
		return
	}
	e.resolver.Add(identity)
}

// Close releases worker pools, the AI provider if the engine created it,
// and storage.
func (e *Engine) Close() error {
	if e.retriever != nil {
		e.retriever.Release()
	}
	if e.pipeline != nil {
		e.pipeline.Release()
	}

	if e.ownsProvider && e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}

	if e.checkpoints != nil {
		if err := e.checkpoints.Close(); err != nil {
			e.logger.Error("error closing checkpoint repository", "err", err)
			return err
		}
	}
	if e.graph != nil {
		if err := e.graph.Close(); err != nil {
			e.logger.Error("error closing graph repository", "err", err)
			return err
		}
	}
	if e.messages != nil {
		if err := e.messages.Close(); err != nil {
			e.logger.Error("error closing message repository", "err", err)
			return err
		}
	}

	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
