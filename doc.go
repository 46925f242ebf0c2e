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

// Package recall answers natural-language questions about a corpus of member
// messages.
//
// An Engine plans each question, splitting comparisons into one sub-query
// per person and classifying every sub-query to pick signal weights. It then
// retrieves candidates by embedding similarity, BM25 term overlap and the
// user relationship graph, fuses the three rankings with weighted reciprocal
// rank fusion and optionally caps results per user. Ask passes the fused
// messages to an answer generator.
//
// Basic usage:
//
//	engine, err := recall.NewEngine("./data/recall.db", recall.WithAIConfig(config))
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	result, err := engine.Search(ctx, "What are Hans's flight preferences?")
package recall
