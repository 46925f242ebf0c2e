package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// MessageRepository implements storage.MessageRepository on BadgerDB.
type MessageRepository struct {
	backend *Backend
}

var _ storage.MessageRepository = (*MessageRepository)(nil)

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(backend *Backend) (*MessageRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", storage.ErrInvalidQuery)
	}
	return &MessageRepository{
		backend: backend,
	}, nil
}

// Close releases resources. MessageRepository has no resources to release.
func (r *MessageRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *MessageRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *MessageRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, userFilter *core.UserID) ([]core.ScoredMessage, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit, userFilter)
}

// AddMessages stores messages and records their authors.
func (r *MessageRepository) AddMessages(ctx context.Context, msgs ...*core.Message) error {
	for _, msg := range msgs {
		if err := core.ValidateMessage(msg); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, msg := range msgs {
			// Drop the old user index entry if the message changed hands
			old, err := readMessage(tx, makeMessageKey(msg.ID))
			if err != nil {
				return err
			}
			if old != nil && old.UserID != msg.UserID {
				if err := tx.Delete(makeUserMessageKey(old.UserID, old.ID)); err != nil {
					return err
				}
			}

			value, err := storage.MarshalMessage(msg)
			if err != nil {
				return err
			}
			if err := tx.Set(makeMessageKey(msg.ID), value); err != nil {
				return err
			}
			if err := tx.Set(makeUserMessageKey(msg.UserID, msg.ID), []byte{}); err != nil {
				return err
			}

			identity := core.UserIdentity{ID: msg.UserID, DisplayName: msg.UserDisplayName}
			userValue, err := storage.MarshalIdentity(identity)
			if err != nil {
				return err
			}
			if err := tx.Set(makeUserKey(msg.UserID), userValue); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetMessage retrieves a single message by ID.
func (r *MessageRepository) GetMessage(ctx context.Context, id core.MessageID) (*core.Message, error) {
	var result *core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readMessage(tx, makeMessageKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetMessages retrieves multiple messages by their IDs.
func (r *MessageRepository) GetMessages(ctx context.Context, ids ...core.MessageID) ([]*core.Message, error) {
	var result []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			msg, err := readMessage(tx, makeMessageKey(id))
			if err != nil {
				return err
			}
			if msg != nil {
				result = append(result, msg)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetMessagesByUser retrieves a user's messages through the per-user index.
func (r *MessageRepository) GetMessagesByUser(ctx context.Context, userID core.UserID) ([]*core.Message, error) {
	var result []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialUserMessageKey(userID)
		return scanPrefix(tx, prefix, true, func(item *badger.Item) error {
			id := core.MessageID(item.Key()[len(prefix):])
			msg, err := readMessage(tx, makeMessageKey(id))
			if err != nil {
				return err
			}
			if msg != nil {
				result = append(result, msg)
			}
			return nil
		})
	}, false)
	return result, err
}

// ForEachMessage calls fn for every stored message in ID order.
func (r *MessageRepository) ForEachMessage(ctx context.Context, fn func(*core.Message) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
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
			return fn(msg)
		})
	}, false)
}

// ListUsers returns every known user ordered by ID.
func (r *MessageRepository) ListUsers(ctx context.Context) ([]core.UserIdentity, error) {
	var result []core.UserIdentity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(userPrefix), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				identity, err := storage.UnmarshalIdentity(val)
				if err != nil {
					return err
				}
				result = append(result, identity)
				return nil
			})
		})
	}, false)
	return result, err
}

// CountMessages returns the number of stored messages.
func (r *MessageRepository) CountMessages(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(messagePrefix), true, func(*badger.Item) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// readMessage returns nil without error when the key does not exist.
func readMessage(tx *badger.Txn, key []byte) (*core.Message, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var msg *core.Message
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		msg, unmarshalErr = storage.UnmarshalMessage(val)
		return unmarshalErr
	})
	return msg, err
}
