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

package core

import "errors"

var (
	// ErrInvalidMessage indicates a Message failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrInvalidTriple indicates a RelationshipTriple failed validation.
	ErrInvalidTriple = errors.New("invalid relationship triple")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyText indicates the message Text field is empty.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyMessageID indicates a missing message id.
	ErrEmptyMessageID = errors.New("message id cannot be empty")

	// ErrEmptyUserID indicates a missing user id.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrEmptyObject indicates the triple Object field is empty.
	ErrEmptyObject = errors.New("triple object cannot be empty")

	// ErrUnknownRelationship indicates an unrecognized relationship tag.
	ErrUnknownRelationship = errors.New("unknown relationship type")

	// ErrUnknownQueryType indicates an unrecognized query type tag.
	ErrUnknownQueryType = errors.New("unknown query type")

	// ErrInvalidWeights indicates a weight profile is unusable.
	ErrInvalidWeights = errors.New("invalid weights")
)
