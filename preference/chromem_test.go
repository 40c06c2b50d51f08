package preference

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder is a deterministic embedding function for tests: one axis
// per keyword, normalized. Texts sharing keywords land close together.
func keywordEmbedder() chromem.EmbeddingFunc {
	axes := []string{"morning", "evening", "meeting", "focus", "lunch"}
	return func(_ context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		v := make([]float32, len(axes)+1)
		for i, axis := range axes {
			if strings.Contains(lower, axis) {
				v[i] = 1
			}
		}
		v[len(axes)] = 0.1 // keeps vectors nonzero for arbitrary text
		var norm float64
		for _, x := range v {
			norm += float64(x * x)
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range v {
			v[i] *= scale
		}
		return v, nil
	}
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(keywordEmbedder())
	require.NoError(t, err)
	return store
}

func TestPutValidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "", "focus", "", "", 0.5)
	assert.Error(t, err, "user id is required")

	_, err = store.Put(ctx, "u1", "", "", "", 0.5)
	assert.Error(t, err, "key is required")

	_, err = store.Put(ctx, "u1", "focus", "", "", 1.5)
	assert.Error(t, err, "weight must stay in [0,1]")
}

func TestPutUpsertsByKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Put(ctx, "u1", "focus_time", "prefers morning focus blocks", "morning", 0.5)
	require.NoError(t, err)

	second, err := store.Put(ctx, "u1", "focus_time", "prefers long morning focus blocks", "morning", 0.9)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert keeps the identifier")
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := store.Get(ctx, "u1", "focus_time")
	require.NoError(t, err)
	require.Len(t, got, 1, "two upserts on one key leave one record")
	assert.Equal(t, 0.9, got[0].Weight)
	assert.Equal(t, "prefers long morning focus blocks", got[0].Description)
}

func TestGetAllAndNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "u1", "b_key", "evening walks", "evening", 0.4)
	require.NoError(t, err)
	_, err = store.Put(ctx, "u1", "a_key", "morning meetings", "morning", 0.6)
	require.NoError(t, err)

	all, err := store.Get(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a_key", all[0].Key, "sorted by key")

	_, err = store.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	other, err := store.Get(ctx, "u2", "")
	require.NoError(t, err)
	assert.Empty(t, other, "users are isolated")
}

func TestSimilarRanksByMeaning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "u1", "mornings", "keep mornings free for focus", "morning", 0.8)
	require.NoError(t, err)
	_, err = store.Put(ctx, "u1", "lunch", "lunch break at noon", "12:00", 0.5)
	require.NoError(t, err)

	matches, err := store.Similar(ctx, "u1", "morning focus work", 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "mornings", matches[0].Key, "closest preference ranks first")

	none, err := store.Similar(ctx, "u2", "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, none, "no records means no matches, not an error")
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "u1", "focus", "morning focus", "morning", 0.5)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "u1", "focus"))
	_, err = store.Get(ctx, "u1", "focus")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "u1", "focus"), ErrNotFound)
}
