package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/futig/docchat-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "test-model"

func emb(chunkID, docID string, vector ...float32) entity.Embedding {
	return entity.Embedding{ChunkID: chunkID, DocumentID: docID, Model: testModel, Vector: vector}
}

func chunkIDs(hits []Hit) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ChunkID
	}
	return ids
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx := New()

	_, err := idx.Search(context.Background(), []float32{1, 0}, 3, testModel)

	assert.ErrorIs(t, err, entity.ErrNoDocumentsIndexed)
	assert.False(t, idx.IsAvailable())
	assert.Equal(t, 0, idx.Size())
}

func TestSearch_RanksByCosineSimilarity(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(
		emb("a:0", "a", 0, 1),
		emb("b:0", "b", 0.7, 0.7),
		emb("c:0", "c", 1, 0),
	))

	hits, err := idx.Search(context.Background(), []float32{2, 0}, 2, testModel)
	require.NoError(t, err)

	assert.Equal(t, []string{"c:0", "b:0"}, chunkIDs(hits))
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "c", hits[0].DocumentID)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(emb("first", "d", 1, 0)))
	require.NoError(t, idx.Upsert(emb("second", "d", 1, 0), emb("third", "d", 1, 0)))

	// Replacing keeps the original position.
	require.NoError(t, idx.Upsert(emb("first", "d", 2, 0)))

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 10, testModel)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, chunkIDs(hits))
	assert.Equal(t, 3, idx.Size())
}

func TestSearch_ModelMismatch(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(emb("a:0", "a", 1, 0)))

	t.Run("different tag", func(t *testing.T) {
		_, err := idx.Search(context.Background(), []float32{1, 0}, 1, "other-model")
		assert.ErrorIs(t, err, entity.ErrEmbeddingModelMismatch)
	})

	t.Run("different dimension", func(t *testing.T) {
		_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1, testModel)
		assert.ErrorIs(t, err, entity.ErrEmbeddingModelMismatch)
	})
}

func TestUpsert_RejectsDimensionChangeAtomically(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(emb("a:0", "a", 1, 0)))

	err := idx.Upsert(emb("b:0", "b", 0, 1), emb("c:0", "c", 1, 2, 3))

	assert.ErrorIs(t, err, entity.ErrEmbeddingModelMismatch)
	assert.Equal(t, 1, idx.Size(), "a failed batch must not be partially applied")
	assert.False(t, idx.Contains("b:0"))
}

func TestUpsert_CopiesVectors(t *testing.T) {
	idx := New()
	vec := []float32{1, 0}
	require.NoError(t, idx.Upsert(emb("a:0", "a", vec...)))

	vec[0] = -1

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 1, testModel)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestRemove(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(
		emb("a:0", "a", 1, 0),
		emb("a:1", "a", 0.9, 0.1),
		emb("b:0", "b", 0, 1),
	))

	assert.Equal(t, 1, idx.Remove("a:1", "missing"))
	assert.Equal(t, 0, idx.Remove("missing"))
	assert.Equal(t, 1, idx.RemoveDocument("a"))

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 10, testModel)
	require.NoError(t, err)
	assert.Equal(t, []string{"b:0"}, chunkIDs(hits))

	assert.Equal(t, 1, idx.RemoveDocument("b"))
	assert.False(t, idx.IsAvailable())
}

func TestRebuild_ReplacesEverything(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(emb("old:0", "old", 1, 0)))

	require.NoError(t, idx.Rebuild([]entity.Embedding{
		emb("new:0", "new", 0, 1),
		emb("new:1", "new", 1, 1),
	}))

	assert.Equal(t, 2, idx.Size())
	assert.False(t, idx.Contains("old:0"))
	assert.Equal(t, []string{testModel}, idx.Models())

	t.Run("failed rebuild keeps previous index", func(t *testing.T) {
		err := idx.Rebuild([]entity.Embedding{emb("x:0", "x", 1, 0), emb("x:1", "x", 1, 0, 0)})
		assert.Error(t, err)
		assert.True(t, idx.Contains("new:0"))
		assert.Equal(t, 2, idx.Size())
	})

	t.Run("entries round trip", func(t *testing.T) {
		entries := idx.Entries()
		other := New()
		require.NoError(t, other.Rebuild(entries))
		assert.Equal(t, idx.Entries(), other.Entries())
	})
}

func TestRebuild_SearchNeverSeesPartialState(t *testing.T) {
	makeSet := func(prefix string, n int) []entity.Embedding {
		set := make([]entity.Embedding, n)
		for i := range set {
			set[i] = emb(fmt.Sprintf("%s:%d", prefix, i), prefix, 1, float32(i))
		}
		return set
	}
	setA := makeSet("a", 8)
	setB := makeSet("b", 16)

	idx := New()
	require.NoError(t, idx.Rebuild(setA))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			set := setA
			if i%2 == 0 {
				set = setB
			}
			assert.NoError(t, idx.Rebuild(set))
		}
		cancel()
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				hits, err := idx.Search(context.Background(), []float32{1, 1}, 100, testModel)
				if !assert.NoError(t, err) {
					return
				}
				prefix := strings.Split(hits[0].ChunkID, ":")[0]
				want := 8
				if prefix == "b" {
					want = 16
				}
				assert.Len(t, hits, want)
				for _, h := range hits {
					assert.True(t, strings.HasPrefix(h.ChunkID, prefix+":"), "mixed snapshot: %s", h.ChunkID)
				}
			}
		}()
	}

	wg.Wait()
}

func TestReset(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Upsert(emb("a:0", "a", 1)))

	idx.Reset()

	assert.False(t, idx.IsAvailable())
	require.NoError(t, idx.Upsert(emb("b:0", "b", 1, 2, 3)), "dimension is free again after reset")
}
