package badger

import (
	"context"
	"testing"

	"github.com/poiesic/recall/core"
	"github.com/poiesic/recall/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := t.TempDir() + "/nested/db"
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	repo, err := NewMessageRepository(backend)
	require.NoError(t, err)
	_, err = repo.CountMessages(context.Background())
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestFindSimilar(t *testing.T) {
	messages, _, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, messages.AddMessages(ctx,
		&core.Message{ID: "m1", UserID: "u1", UserDisplayName: "Hans Müller", Text: "a", Vector: []float32{1, 0, 0}},
		&core.Message{ID: "m2", UserID: "u2", UserDisplayName: "Layla Kawaguchi", Text: "b", Vector: []float32{0.9, 0.1, 0}},
		&core.Message{ID: "m3", UserID: "u1", UserDisplayName: "Hans Müller", Text: "c", Vector: []float32{0, 1, 0}},
		&core.Message{ID: "m4", UserID: "u2", UserDisplayName: "Layla Kawaguchi", Text: "no vector"},
	))

	t.Run("ordered by similarity", func(t *testing.T) {
		results, err := messages.FindSimilar(ctx, []float32{1, 0, 0}, 0, 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, core.MessageID("m1"), results[0].Message.ID)
		assert.Equal(t, core.MessageID("m2"), results[1].Message.ID)
		assert.Equal(t, core.MessageID("m3"), results[2].Message.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	})

	t.Run("threshold and limit", func(t *testing.T) {
		results, err := messages.FindSimilar(ctx, []float32{1, 0, 0}, 0.5, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, core.MessageID("m1"), results[0].Message.ID)
	})

	t.Run("user filter", func(t *testing.T) {
		user := core.UserID("u2")
		results, err := messages.FindSimilar(ctx, []float32{1, 0, 0}, 0, 10, &user)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, core.MessageID("m2"), results[0].Message.ID)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := messages.FindSimilar(ctx, []float32{1, 0, 0}, 0, 0, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)

		_, err = messages.FindSimilar(ctx, nil, 0, 5, nil)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)

		_, err = messages.FindSimilar(ctx, []float32{1, 0}, 0, 5, nil)
		assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
