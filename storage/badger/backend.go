package badger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

func ensureDir(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filePath, 0755); err != nil {
			return err
		}
		info, err = os.Stat(filePath)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filePath)
	}
	return nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// WithTransaction executes a function within a transaction.
// Implements storage.Repository.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// scanPrefix calls fn for every key with the given prefix, in key order.
// Values are not prefetched when keysOnly is set.
func scanPrefix(tx *badger.Txn, prefix []byte, keysOnly bool, fn func(item *badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = !keysOnly
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := fn(iter.Item()); err != nil {
			return err
		}
	}
	return nil
}

// FindSimilar finds messages similar to the given vector by brute-force
// cosine similarity. A non-nil userFilter limits the scan to that user's
// messages through the per-user index.
func (b *Backend) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, userFilter *core.UserID) ([]core.ScoredMessage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	var results []core.ScoredMessage
	consider := func(msg *core.Message) error {
		if msg == nil || len(msg.Vector) == 0 {
			return nil
		}
		if len(msg.Vector) != len(vector) {
			return fmt.Errorf("%w: query %d, message %s has %d", storage.ErrDimensionMismatch, len(vector), msg.ID, len(msg.Vector))
		}
		similarity := cosineSimilarity(vector, msg.Vector)
		if similarity >= minSimilarity {
			results = append(results, core.ScoredMessage{Message: msg, Score: float64(similarity)})
		}
		return nil
	}

	err := b.WithTx(func(tx *badger.Txn) error {
		if userFilter != nil {
			prefix := makePartialUserMessageKey(*userFilter)
			return scanPrefix(tx, prefix, true, func(item *badger.Item) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				id := core.MessageID(item.Key()[len(prefix):])
				msg, err := readMessage(tx, makeMessageKey(id))
				if err != nil {
					return err
				}
				return consider(msg)
			})
		}

		return scanPrefix(tx, []byte(messagePrefix), false, func(item *badger.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var msg *core.Message
			if err := item.Value(func(val []byte) error {
				var err error
				msg, err = storage.UnmarshalMessage(val)
				return err
			}); err != nil {
				return err
			}
			return consider(msg)
		})
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, ties by message ID
	slices.SortStableFunc(results, func(a, b core.ScoredMessage) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Message.ID < b.Message.ID {
			return -1
		}
		if a.Message.ID > b.Message.ID {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// cosineSimilarity calculates the cosine similarity of two equal-length vectors.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
