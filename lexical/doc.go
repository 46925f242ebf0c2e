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

// Package lexical provides in-process BM25 keyword search over messages.
//
// The index keeps one roaring bitmap posting list per term and one bitmap per
// user, so a user-filtered search is a bitmap intersection rather than a
// post-filter. Text is folded (lower-cased, diacritics removed) and segmented
// with UAX #29 word boundaries before indexing; queries go through the same
// pipeline, so "Müller" matches "muller".
//
// An Index is built once from the message repository and then only read, but
// it is safe for concurrent use either way.
package lexical
