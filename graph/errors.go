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

package graph

import "errors"

var (
	// ErrGraphRepositoryRequired indicates a nil graph repository.
	ErrGraphRepositoryRequired = errors.New("graph repository is required")

	// ErrMessageRepositoryRequired indicates a nil message repository.
	ErrMessageRepositoryRequired = errors.New("message repository is required")

	// ErrResolverRequired indicates a nil name resolver.
	ErrResolverRequired = errors.New("name resolver is required")
)
