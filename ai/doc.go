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

// Package ai provides abstractions for the AI services used by recall.
//
// The core retrieval pipeline depends only on the interfaces defined here:
//
//   - Embedder: Generates vector embeddings from text
//   - QueryDecomposer: Splits comparison queries into per-user sub-queries
//   - AnswerGenerator: Writes a natural-language answer from ranked messages
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behavior and inspect call counts.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Book a table at Nobu")
//	subQueries, err := provider.Decomposer().Decompose(ctx, "Compare Hans and Layla", users)
package ai
