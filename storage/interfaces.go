package storage

import (
	"context"

	"github.com/poiesic/recall/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// MessageRepository stores corpus messages and the users who wrote them.
type MessageRepository interface {
	Repository

	// AddMessages stores messages, replacing any with the same ID.
	// Each message's author is recorded as a known user.
	AddMessages(ctx context.Context, msgs ...*core.Message) error

	// GetMessage retrieves a single message by ID.
	// Returns ErrNotFound if the message doesn't exist.
	GetMessage(ctx context.Context, id core.MessageID) (*core.Message, error)

	// GetMessages retrieves multiple messages by their IDs, in argument order.
	// Returns only the messages that exist (no error for missing messages).
	GetMessages(ctx context.Context, ids ...core.MessageID) ([]*core.Message, error)

	// GetMessagesByUser retrieves every message written by a user, ordered by ID.
	GetMessagesByUser(ctx context.Context, userID core.UserID) ([]*core.Message, error)

	// ForEachMessage calls fn for every stored message in ID order.
	// Iteration stops at the first error fn returns.
	ForEachMessage(ctx context.Context, fn func(*core.Message) error) error

	// ListUsers returns every known user identity ordered by ID.
	ListUsers(ctx context.Context) ([]core.UserIdentity, error)

	// CountMessages returns the number of stored messages.
	CountMessages(ctx context.Context) (int, error)

	// FindSimilar finds messages whose vectors are similar to the given vector.
	// Returns messages with similarity >= minSimilarity, up to limit results,
	// ordered by similarity (highest first). A non-nil userFilter restricts
	// results to that user's messages.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, userFilter *core.UserID) ([]core.ScoredMessage, error)
}

// GraphRepository stores relationship triples and the entity index derived
// from their objects.
type GraphRepository interface {
	Repository

	// AddTriples stores triples. Triples with a zero ID get a content-based ID.
	// Every word of a triple's object is added to the entity index.
	AddTriples(ctx context.Context, triples ...*core.RelationshipTriple) error

	// GetRelationships returns a user's triples ordered by relationship type,
	// then message ID. A non-nil relType restricts results to that type.
	GetRelationships(ctx context.Context, userID core.UserID, relType *core.RelationshipType) ([]*core.RelationshipTriple, error)

	// EntityIndexLookup returns the users with at least one triple whose
	// object contains keyword as a word or equals it. Lookup is
	// case-insensitive. Users are ordered by ID.
	EntityIndexLookup(ctx context.Context, keyword string) ([]core.UserID, error)

	// CountTriples returns the number of stored triples.
	CountTriples(ctx context.Context) (int, error)
}

// CheckpointRepository persists progress of long-running operations so an
// interrupted run can resume.
type CheckpointRepository interface {
	Repository

	// SaveCheckpoint stores checkpoint, replacing any previous one for the
	// same operation. UpdatedAt is set to the current time.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the checkpoint for operation, or nil if none exists.
	LoadCheckpoint(ctx context.Context, operation string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for operation. Deleting a
	// missing checkpoint is not an error.
	DeleteCheckpoint(ctx context.Context, operation string) error
}
