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

package search

import "errors"

var (
	// ErrPlannerRequired is returned when a query planner is not provided.
	ErrPlannerRequired = errors.New("query planner required")

	// ErrSemanticSearcherRequired is returned when a semantic searcher is not provided.
	ErrSemanticSearcherRequired = errors.New("semantic searcher required")

	// ErrLexicalSearcherRequired is returned when a lexical searcher is not provided.
	ErrLexicalSearcherRequired = errors.New("lexical searcher required")

	// ErrGraphSearcherRequired is returned when a graph searcher is not provided.
	ErrGraphSearcherRequired = errors.New("graph searcher required")

	// ErrResolverRequired is returned when a name resolver is not provided.
	ErrResolverRequired = errors.New("name resolver required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrMessageRepositoryRequired is returned when a message repository is not provided.
	ErrMessageRepositoryRequired = errors.New("message repository required")

	// ErrInvalidOption is returned for out-of-range option values.
	ErrInvalidOption = errors.New("invalid option")
)
