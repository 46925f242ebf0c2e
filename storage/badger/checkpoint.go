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

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
)

// CheckpointRepository implements storage.CheckpointRepository on BadgerDB.
type CheckpointRepository struct {
	backend *Backend
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend) (*CheckpointRepository, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is nil", storage.ErrInvalidQuery)
	}
	return &CheckpointRepository{
		backend: backend,
	}, nil
}

// Close releases resources. CheckpointRepository has no resources to release.
func (r *CheckpointRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *CheckpointRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// SaveCheckpoint persists a checkpoint for an operation.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if checkpoint == nil || checkpoint.Operation == "" {
		return fmt.Errorf("%w: checkpoint needs an operation", storage.ErrInvalidQuery)
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		checkpoint.UpdatedAt = time.Now().UTC()
		value, err := storage.MarshalCheckpoint(checkpoint)
		if err != nil {
			return err
		}
		if err := tx.Set(makeCheckpointKey(checkpoint.Operation), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCheckpoint retrieves the checkpoint for an operation.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, operation string) (*core.Checkpoint, error) {
	var checkpoint *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(operation))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			checkpoint, err = storage.UnmarshalCheckpoint(val)
			return err
		})
	}, false)
	return checkpoint, err
}

// DeleteCheckpoint removes the checkpoint for an operation.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, operation string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(operation)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
