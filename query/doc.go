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

// Package query turns raw query text into retrieval plans.
//
// A Processor first decomposes a query (comparison queries naming several
// users become one sub-query per user) and then classifies each resulting
// query into a core.QueryPlan carrying fusion weights and a diversity policy
// from a ProfileSet.
//
// Decomposition is a Chain: an aggregation guardrail, then an LLM-backed
// decomposer guarded by a timeout and a circuit breaker, then a rule-based
// fallback. The chain never fails; the worst outcome is the original query.
package query
