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

// Package graph retrieves messages by walking the relationship graph of the
// users a query mentions.
//
// The Searcher detects user names and a relationship intent ("preferences",
// "booked", "owns") in the query, then collects the source messages of the
// matching relationship triples. A detected relationship type admits messages
// without requiring the query's literal words, which is what lets "What are
// Hans's preferences?" find "I prefer Italian cuisine". When the user walk
// comes up short, an entity-index lookup on the query keywords fills the rest.
//
// Results are returned in discovery order and carry no score; rank fusion
// uses only their position.
package graph
