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

package query

import "errors"

var (
	// ErrResolverRequired is returned when a name resolver is not provided.
	ErrResolverRequired = errors.New("name resolver required")

	// ErrDecomposerRequired is returned when a decomposer is not provided.
	ErrDecomposerRequired = errors.New("decomposer required")

	// ErrClassifierRequired is returned when a classifier is not provided.
	ErrClassifierRequired = errors.New("classifier required")

	// ErrInvalidProfile indicates a weight profile set is incomplete or unusable.
	ErrInvalidProfile = errors.New("invalid weight profile")

	// ErrInvalidTimeout indicates a non-positive timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")
)
