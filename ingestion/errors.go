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

package ingestion

import "errors"

var (
	// ErrMessageRepositoryRequired is returned when a message repository is not provided.
	ErrMessageRepositoryRequired = errors.New("message repository required")

	// ErrGraphRepositoryRequired is returned when a graph repository is not provided.
	ErrGraphRepositoryRequired = errors.New("graph repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmbeddingMismatch is returned when the embedder returns a different
	// number of vectors than texts it was given.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")

	// ErrMalformedRecord is returned when an input file cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")
)
