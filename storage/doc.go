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

// Package storage provides the storage abstraction layer for recall.
//
// This package defines repository interfaces that decouple storage
// implementation from retrieval logic. The corpus and relationship graph are
// treated as read-only snapshots once loaded; writes happen only during
// ingestion.
//
// # Architecture
//
//   - Repository: transaction support and lifecycle
//   - MessageRepository: corpus messages, known users, vector similarity search
//   - GraphRepository: relationship triples and the entity index
//   - CheckpointRepository: progress of resumable maintenance operations
//
// # Usage
//
// Open repositories backed by a BadgerDB directory:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	messages, err := badger.NewMessageRepository(backend)
//
// Use in tests with in-memory storage:
//
//	messages, graph, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
