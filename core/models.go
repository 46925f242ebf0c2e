package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content hash used for records that have no natural key.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b-64.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// MessageID uniquely identifies a message across the corpus.
type MessageID string

// UserID uniquely identifies a user.
type UserID string

// Message is a single user-attributed corpus entry. Messages are never
// mutated once ingested.
type Message struct {
	ID              MessageID
	UserID          UserID
	UserDisplayName string
	Timestamp       time.Time
	Text            string
	Vector          []float32 // Embedding vector (populated during ingestion)
}

// UserIdentity is the canonical identity a surface-form name resolves to.
type UserIdentity struct {
	ID          UserID
	DisplayName string
}

// IsZero reports whether the identity is unset.
func (u UserIdentity) IsZero() bool {
	return u.ID == "" && u.DisplayName == ""
}

// RelationshipTriple is a subject-relationship-object fact extracted from a
// message and linked back to it.
type RelationshipTriple struct {
	ID           ID
	Subject      UserIdentity
	Relationship RelationshipType
	Object       string
	MessageID    MessageID
}

// Key returns the content string the triple ID is derived from.
func (t *RelationshipTriple) Key() string {
	return string(t.Subject.ID) + "|" + t.Relationship.String() + "|" + t.Object + "|" + string(t.MessageID)
}

// ScoredMessage is a message paired with the raw score of the single
// retrieval method that produced it.
type ScoredMessage struct {
	Message *Message
	Score   float64
}

// SourceRanks records the 1-based rank a message held in each retrieval
// signal. Zero means the signal did not return it.
type SourceRanks struct {
	Semantic int `json:"semantic"`
	Lexical  int `json:"lexical"`
	Graph    int `json:"graph"`
}

// RankedResult is a message with a stage-dependent score. After fusion the
// score is the weighted RRF sum and Sources carries provenance.
type RankedResult struct {
	Message *Message
	Score   float64
	Sources SourceRanks
}

// Weights are the per-signal multipliers applied during rank fusion.
type Weights struct {
	Semantic float64 `yaml:"semantic" json:"semantic"`
	Lexical  float64 `yaml:"lexical" json:"lexical"`
	Graph    float64 `yaml:"graph" json:"graph"`
}

// DiversityPolicy controls the per-user cap applied after fusion.
type DiversityPolicy struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxPerUser int  `yaml:"max_per_user" json:"max_per_user"`
}

// QueryPlan is the classification of one (sub-)query. Plans are created per
// query and are not persisted.
type QueryPlan struct {
	Query     string
	Type      QueryType
	Weights   Weights
	Reason    string
	Diversity DiversityPolicy
}

// Checkpoint records how far a resumable operation over messages has
// progressed. Messages are visited in ID order, so everything up to and
// including LastID is done.
type Checkpoint struct {
	Operation string
	LastID    MessageID
	Processed int
	UpdatedAt time.Time
}
