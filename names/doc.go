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

// Package names resolves surface-form name tokens to canonical user identities.
//
// A Resolver is populated once with every known user and then queried with
// tokens taken from free text: first names, last names, full names, possessive
// forms ("Hans's") and diacritic variants ("Muller" for "Müller"). Resolution
// fails closed: a token that matches two or more identities resolves to
// nothing rather than to an arbitrary pick.
//
// # Matching Order
//
//   - Exact, case- and diacritic-insensitive match on full name or any name part
//   - Fuzzy match (normalized indel similarity) only when no exact match exists
//
// Both stages apply the same ambiguity rule.
//
// # Thread Safety
//
// Resolver is safe for concurrent use. Queries are expected to run after
// population finishes, but Add and Resolve may interleave.
package names
