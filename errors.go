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

package recall

import "errors"

var (
	// ErrGeneratorUnavailable is returned by Ask when the AI provider has no
	// answer generator.
	ErrGeneratorUnavailable = errors.New("answer generator unavailable")

	// ErrEmbedderUnavailable is returned when the AI provider has no embedder.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid option")
)
