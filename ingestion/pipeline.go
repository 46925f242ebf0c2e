package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/metrics"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/textutil"
)

const (
	// DefaultBatchSize is the number of messages embedded per request.
	DefaultBatchSize = 32

	// DefaultMaxAttempts is the number of embedding attempts per batch.
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay is the delay before the first retry.
	DefaultRetryBaseDelay = 500 * time.Millisecond
)

// Pipeline stores messages with their embeddings and links relationship
// triples to users.
type Pipeline struct {
	messages       storage.MessageRepository
	graph          storage.GraphRepository
	checkpoints    storage.CheckpointRepository
	embeddingProc  processor
	pool           *ants.Pool
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	progress       io.Writer
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many messages are embedded per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidOption
		}
		p.batchSize = size
		return nil
	}
}

// WithRetry sets the embedding attempts per batch and the initial backoff.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		if baseDelay < 0 {
			return ErrInvalidOption
		}
		p.maxAttempts = maxAttempts
		p.retryBaseDelay = baseDelay
		return nil
	}
}

// WithProgress reports progress to w. Default is no reporting.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithCheckpoints makes Reembed save progress after each batch and resume
// from the last saved message.
func WithCheckpoints(repo storage.CheckpointRepository) Option {
	return func(p *Pipeline) error {
		p.checkpoints = repo
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	messages storage.MessageRepository,
	graph storage.GraphRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if messages == nil {
		return nil, ErrMessageRepositoryRequired
	}
	if graph == nil {
		return nil, ErrGraphRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		messages:       messages,
		graph:          graph,
		pool:           pool,
		batchSize:      DefaultBatchSize,
		maxAttempts:    DefaultMaxAttempts,
		retryBaseDelay: DefaultRetryBaseDelay,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// Created after options so the processor gets the final retry settings
	embeddingProc, err := newEmbeddingProcessor(embedder, p.maxAttempts, p.retryBaseDelay, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// IngestMessages validates msgs, embeds those without a vector and stores
// them. Vectors are set on msgs in place. Every message is validated before
// anything is written; a failing batch does not stop the others. Returns the
// number of messages stored and the first error encountered.
func (p *Pipeline) IngestMessages(ctx context.Context, msgs []*core.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	for i, msg := range msgs {
		if err := core.ValidateMessage(msg); err != nil {
			return 0, fmt.Errorf("message %d: %w", i, err)
		}
	}

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, "Messages", len(msgs), p.batchSize)
		tracker.Start()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		stored   int
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for start := 0; start < len(msgs); start += p.batchSize {
		end := min(start+p.batchSize, len(msgs))
		batch := msgs[start:end]

		wg.Add(1)
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			if err := p.embeddingProc.process(ctx, batch); err != nil {
				p.logger.Error("error embedding batch", "first", batch[0].ID, "size", len(batch), "err", err)
				fail(err)
				return
			}
			if err := p.messages.AddMessages(ctx, batch...); err != nil {
				p.logger.Error("error storing batch", "first", batch[0].ID, "size", len(batch), "err", err)
				fail(err)
				return
			}

			metrics.IngestedTotal.WithLabelValues("message").Add(float64(len(batch)))
			mu.Lock()
			stored += len(batch)
			mu.Unlock()
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		}

		if err := p.pool.Submit(task); err != nil {
			p.logger.Debug("worker pool rejected batch, running inline", "err", err)
			task()
		}
	}
	wg.Wait()

	if tracker != nil {
		tracker.Finish()
	}
	p.logger.Info("ingested messages", "stored", stored, "total", len(msgs))
	return stored, firstErr
}

// TripleStats summarizes a triple ingestion.
type TripleStats struct {
	Stored  int
	Skipped int
}

// IngestTriples links records to users and stores them. The subject is
// matched against the author of the source message first, then against
// known display names. A subject that names no known user, such as a
// pronoun, is attributed to the source message's author. Records with an
// unknown relationship, an empty object or no resolvable subject are skipped.
func (p *Pipeline) IngestTriples(ctx context.Context, records []TripleRecord) (TripleStats, error) {
	var stats TripleStats
	if len(records) == 0 {
		return stats, nil
	}

	byName, err := p.usersByName(ctx)
	if err != nil {
		return stats, err
	}

	triples := make([]*core.RelationshipTriple, 0, len(records))
	for i, rec := range records {
		triple, err := p.linkTriple(ctx, rec, byName)
		if err != nil {
			if errors.Is(err, errSkipTriple) {
				p.logger.Warn("skipping triple", "index", i, "subject", rec.Subject, "message", rec.MessageID, "reason", err)
				stats.Skipped++
				continue
			}
			return stats, err
		}
		triples = append(triples, triple)
	}

	for start := 0; start < len(triples); start += p.batchSize {
		end := min(start+p.batchSize, len(triples))
		if err := p.graph.AddTriples(ctx, triples[start:end]...); err != nil {
			return stats, err
		}
		stats.Stored += end - start
		metrics.IngestedTotal.WithLabelValues("triple").Add(float64(end - start))
	}

	p.logger.Info("ingested triples", "stored", stats.Stored, "skipped", stats.Skipped)
	return stats, nil
}

var errSkipTriple = errors.New("unusable triple")

func (p *Pipeline) linkTriple(ctx context.Context, rec TripleRecord, byName map[string][]core.UserIdentity) (*core.RelationshipTriple, error) {
	rel, err := core.ParseRelationshipType(rec.Relationship)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errSkipTriple, err)
	}
	object := strings.TrimSpace(rec.Object)
	if object == "" {
		return nil, fmt.Errorf("%w: %w", errSkipTriple, core.ErrEmptyObject)
	}
	msgID := core.MessageID(strings.TrimSpace(rec.MessageID))
	if msgID == "" {
		return nil, fmt.Errorf("%w: %w", errSkipTriple, core.ErrEmptyMessageID)
	}

	source, err := p.messages.GetMessage(ctx, msgID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		source = nil
	}

	subject, ok := resolveSubject(rec.Subject, source, byName)
	if !ok {
		return nil, fmt.Errorf("%w: unresolved subject", errSkipTriple)
	}

	return &core.RelationshipTriple{
		Subject:      subject,
		Relationship: rel,
		Object:       object,
		MessageID:    msgID,
	}, nil
}

func resolveSubject(subject string, source *core.Message, byName map[string][]core.UserIdentity) (core.UserIdentity, bool) {
	key := nameKey(subject)
	if source != nil {
		author := core.UserIdentity{ID: source.UserID, DisplayName: source.UserDisplayName}
		if key == "" || key == nameKey(source.UserDisplayName) {
			return author, true
		}
		if matches := byName[key]; len(matches) == 1 {
			return matches[0], true
		}
		return author, true
	}
	if matches := byName[key]; key != "" && len(matches) == 1 {
		return matches[0], true
	}
	return core.UserIdentity{}, false
}

func (p *Pipeline) usersByName(ctx context.Context) (map[string][]core.UserIdentity, error) {
	users, err := p.messages.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string][]core.UserIdentity, len(users))
	for _, u := range users {
		key := nameKey(u.DisplayName)
		if key == "" {
			continue
		}
		byName[key] = append(byName[key], u)
	}
	return byName, nil
}

func nameKey(name string) string {
	return strings.Join(strings.Fields(textutil.Fold(name)), " ")
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
