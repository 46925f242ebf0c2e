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

// Package textutil holds the text normalization shared by name resolution,
// graph search and the lexical index.
//
// All matching in recall is case-insensitive and diacritic-insensitive, so
// "Müller", "MULLER" and "muller" compare equal after Fold. Word boundaries
// follow Unicode UAX #29 segmentation rather than whitespace splitting, which
// keeps contractions and names such as "O'Sullivan" intact.
package textutil
