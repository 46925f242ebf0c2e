package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const messageArray = `[
  {"id": "m1", "user_id": "u1", "user_name": "Hans Müller", "timestamp": "2024-11-14T09:30:00Z", "message": "Book Nobu for Friday."},
  {"id": "m2", "user_id": "u2", "user_name": "Layla Kawaguchi", "timestamp": "2024-11-15T10:00:00.123456+00:00", "message": "Aisle seat, please."}
]`

func TestReadMessages_Formats(t *testing.T) {
	jsonl := `{"id": "m1", "user_id": "u1", "user_name": "Hans Müller", "timestamp": "2024-11-14T09:30:00Z", "message": "Book Nobu for Friday."}
{"id": "m2", "user_id": "u2", "user_name": "Layla Kawaguchi", "timestamp": "2024-11-15T10:00:00.123456+00:00", "message": "Aisle seat, please."}
`
	wrapped := `{"total": 2, "items": ` + messageArray + `}`

	for name, input := range map[string]string{"array": messageArray, "jsonl": jsonl, "items": wrapped} {
		t.Run(name, func(t *testing.T) {
			msgs, err := ReadMessages(strings.NewReader(input))
			require.NoError(t, err)
			require.Len(t, msgs, 2)

			assert.Equal(t, &core.Message{
				ID:              "m1",
				UserID:          "u1",
				UserDisplayName: "Hans Müller",
				Timestamp:       time.Date(2024, 11, 14, 9, 30, 0, 0, time.UTC),
				Text:            "Book Nobu for Friday.",
			}, msgs[0])
			assert.Equal(t, core.MessageID("m2"), msgs[1].ID)
			assert.Equal(t, "Layla Kawaguchi", msgs[1].UserDisplayName)
		})
	}
}

func TestReadMessages_Empty(t *testing.T) {
	msgs, err := ReadMessages(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestReadMessages_Malformed(t *testing.T) {
	_, err := ReadMessages(strings.NewReader(`[{"id": "m1",`))
	assert.ErrorIs(t, err, ErrMalformedRecord)

	_, err = ReadMessages(strings.NewReader(`{"id": "m1", "timestamp": "yesterday"}`))
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestReadTriples(t *testing.T) {
	input := `[
  {"subject": "Hans Müller", "relationship": "PREFERS", "object": "Italian cuisine", "message_id": "m1", "timestamp": "2024-11-14T09:30:00Z", "metadata": {"extractor": "gliner"}},
  {"subject": "Layla Kawaguchi", "relationship": "VISITED", "object": "Louvre", "message_id": "m2"}
]`
	triples, err := ReadTriples(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []TripleRecord{
		{Subject: "Hans Müller", Relationship: "PREFERS", Object: "Italian cuisine", MessageID: "m1"},
		{Subject: "Layla Kawaguchi", Relationship: "VISITED", Object: "Louvre", MessageID: "m2"},
	}, triples)
}

func TestLoadMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte(messageArray), 0o644))

	msgs, err := LoadMessages(path)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = LoadMessages(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadTriples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triples.jsonl")
	content := `{"subject": "Hans Müller", "relationship": "OWNS", "object": "Ferrari", "message_id": "m3"}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	triples, err := LoadTriples(path)
	require.NoError(t, err)
	require.Len(t, triples, 1)
	assert.Equal(t, "Ferrari", triples[0].Object)
}
