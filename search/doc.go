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

// Package search provides hybrid retrieval over the message corpus.
//
// The Retriever runs each query plan through three independent signals:
//   - Semantic search using vector embeddings
//   - Lexical search using a BM25 index
//   - Graph search over user relationships
//
// The signals run concurrently on a worker pool. Their rankings are merged
// with weighted reciprocal rank fusion, optionally diversified across users,
// and the per-plan rankings of a decomposed query are interleaved into one
// result list. A failing signal is logged and treated as empty.
package search
