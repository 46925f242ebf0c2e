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

import (
	"fmt"
	"math"
	"time"
)

// ValidateMessage checks that a Message has the fields retrieval depends on.
// Returns an error wrapping ErrInvalidMessage if validation fails.
func ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if msg.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyMessageID)
	}

	if msg.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyUserID)
	}

	if msg.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyText)
	}

	if !IsValidTimestamp(msg.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateTriple checks that a RelationshipTriple is complete.
// Returns an error wrapping ErrInvalidTriple if validation fails.
func ValidateTriple(triple *RelationshipTriple) error {
	if triple == nil {
		return fmt.Errorf("%w: triple is nil", ErrInvalidTriple)
	}

	if triple.Subject.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTriple, ErrEmptyUserID)
	}

	if !triple.Relationship.Valid() {
		return fmt.Errorf("%w: %w: %d", ErrInvalidTriple, ErrUnknownRelationship, int(triple.Relationship))
	}

	if triple.Object == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTriple, ErrEmptyObject)
	}

	if triple.MessageID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTriple, ErrEmptyMessageID)
	}

	return nil
}

// ValidateWeights rejects negative or non-finite weights and the all-zero profile.
func ValidateWeights(w Weights) error {
	for name, v := range map[string]float64{"semantic": w.Semantic, "lexical": w.Lexical, "graph": w.Graph} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s weight %v", ErrInvalidWeights, name, v)
		}
	}
	if w.Semantic == 0 && w.Lexical == 0 && w.Graph == 0 {
		return fmt.Errorf("%w: all weights are zero", ErrInvalidWeights)
	}
	return nil
}

// IsValidTimestamp reports whether ts is not in the future. The zero time is accepted.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
