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

// Package fusion merges ranked lists from independent retrieval signals.
//
// Fuse implements weighted Reciprocal Rank Fusion: a message at 1-based rank r
// in a list with weight w contributes w/(k+r), and contributions are summed
// per message ID across the semantic, lexical and graph lists. RRF only looks
// at ranks, so the raw scores of the individual signals never need to be
// normalized against each other.
//
// Diversify caps how many results one user contributes to a ranking, and
// Compose interleaves the rankings of decomposed sub-queries.
//
// All functions are pure and deterministic: identical inputs always produce
// identical output, including the order of equal-score results.
package fusion
