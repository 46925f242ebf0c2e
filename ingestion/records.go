package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/poiesic/recall/core"
)

// MessageRecord is the file representation of a message.
type MessageRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Message converts the record into a core message.
func (r MessageRecord) Message() *core.Message {
	return &core.Message{
		ID:              core.MessageID(strings.TrimSpace(r.ID)),
		UserID:          core.UserID(strings.TrimSpace(r.UserID)),
		UserDisplayName: strings.TrimSpace(r.UserName),
		Timestamp:       r.Timestamp,
		Text:            r.Message,
	}
}

// TripleRecord is the file representation of a relationship triple. Subject
// is a user's display name.
type TripleRecord struct {
	Subject      string `json:"subject"`
	Relationship string `json:"relationship"`
	Object       string `json:"object"`
	MessageID    string `json:"message_id"`
}

// envelope is the paginated export layout.
type envelope[T any] struct {
	Items []T `json:"items"`
}

// LoadMessages reads message records from a file.
func LoadMessages(path string) ([]*core.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadMessages(f)
}

// ReadMessages decodes message records from r.
func ReadMessages(r io.Reader) ([]*core.Message, error) {
	records, err := decodeRecords[MessageRecord](r)
	if err != nil {
		return nil, err
	}
	msgs := make([]*core.Message, len(records))
	for i, rec := range records {
		msgs[i] = rec.Message()
	}
	return msgs, nil
}

// LoadTriples reads triple records from a file.
func LoadTriples(path string) ([]TripleRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTriples(f)
}

// ReadTriples decodes triple records from r.
func ReadTriples(r io.Reader) ([]TripleRecord, error) {
	return decodeRecords[TripleRecord](r)
}

// decodeRecords reads a stream of JSON values. Each value is a record, an
// array of records, or an object with an "items" array, so JSON arrays,
// JSON Lines and paginated exports all decode the same way.
func decodeRecords[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	var out []T
	for n := 1; ; n++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("%w: value %d: %w", ErrMalformedRecord, n, err)
		}

		switch trimmed := bytes.TrimSpace(raw); {
		case len(trimmed) > 0 && trimmed[0] == '[':
			var batch []T
			if err := json.Unmarshal(trimmed, &batch); err != nil {
				return nil, fmt.Errorf("%w: value %d: %w", ErrMalformedRecord, n, err)
			}
			out = append(out, batch...)
		case isEnvelope(trimmed):
			var env envelope[T]
			if err := json.Unmarshal(trimmed, &env); err != nil {
				return nil, fmt.Errorf("%w: value %d: %w", ErrMalformedRecord, n, err)
			}
			out = append(out, env.Items...)
		default:
			var rec T
			if err := json.Unmarshal(trimmed, &rec); err != nil {
				return nil, fmt.Errorf("%w: value %d: %w", ErrMalformedRecord, n, err)
			}
			out = append(out, rec)
		}
	}
}

func isEnvelope(raw []byte) bool {
	if len(raw) == 0 || raw[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	items, ok := fields["items"]
	return ok && len(bytes.TrimSpace(items)) > 0 && bytes.TrimSpace(items)[0] == '['
}
