package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/poiesic/recall/textutil"
)

// GraphRepository implements storage.GraphRepository on BadgerDB.
type GraphRepository struct {
	backend *Backend
}

var _ storage.GraphRepository = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository.
func NewGraphRepository(backend *Backend) (*GraphRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", storage.ErrInvalidQuery)
	}
	return &GraphRepository{
		backend: backend,
	}, nil
}

// Close releases resources. GraphRepository has no resources to release.
func (r *GraphRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *GraphRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddTriples stores triples along with their relationship and entity index entries.
func (r *GraphRepository) AddTriples(ctx context.Context, triples ...*core.RelationshipTriple) error {
	for _, triple := range triples {
		if err := core.ValidateTriple(triple); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, triple := range triples {
			// Use content-based ID if not set
			if triple.ID == 0 {
				triple.ID = core.IDFromContent(triple.Key())
			}

			value, err := storage.MarshalTriple(triple)
			if err != nil {
				return err
			}
			if err := tx.Set(makeTripleKey(triple.ID), value); err != nil {
				return err
			}
			if err := tx.Set(makeUserTripleKey(triple), []byte{}); err != nil {
				return err
			}
			for _, term := range entityTerms(triple.Object) {
				if err := tx.Set(makeEntityKey(term, triple.Subject.ID), []byte{}); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
}

// GetRelationships returns a user's triples, optionally narrowed to one type.
func (r *GraphRepository) GetRelationships(ctx context.Context, userID core.UserID, relType *core.RelationshipType) ([]*core.RelationshipTriple, error) {
	var result []*core.RelationshipTriple
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialUserTripleKey(userID, relType), true, func(item *badger.Item) error {
			triple, err := readTriple(tx, makeTripleKey(tripleIDFromIndexKey(item.Key())))
			if err != nil {
				return err
			}
			if triple != nil {
				result = append(result, triple)
			}
			return nil
		})
	}, false)
	return result, err
}

// EntityIndexLookup returns the users whose triple objects mention keyword.
func (r *GraphRepository) EntityIndexLookup(ctx context.Context, keyword string) ([]core.UserID, error) {
	term := entityKey(keyword)
	if term == "" {
		return nil, nil
	}

	var result []core.UserID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialEntityKey(term)
		return scanPrefix(tx, prefix, true, func(item *badger.Item) error {
			result = append(result, core.UserID(item.Key()[len(prefix):]))
			return nil
		})
	}, false)
	return result, err
}

// CountTriples returns the number of stored triples.
func (r *GraphRepository) CountTriples(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(triplePrefix), true, func(*badger.Item) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// entityTerms returns the whole folded object plus each of its words.
func entityTerms(object string) []string {
	full := entityKey(object)
	if full == "" {
		return nil
	}
	terms := []string{full}
	for _, word := range textutil.Words(full) {
		if word != full && !contains(terms, word) {
			terms = append(terms, word)
		}
	}
	return terms
}

func entityKey(s string) string {
	return strings.Join(strings.Fields(textutil.Fold(s)), " ")
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

// readTriple returns nil without error when the key does not exist.
func readTriple(tx *badger.Txn, key []byte) (*core.RelationshipTriple, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var triple *core.RelationshipTriple
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		triple, unmarshalErr = storage.UnmarshalTriple(val)
		return unmarshalErr
	})
	return triple, err
}
