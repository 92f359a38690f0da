package vector

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/hrygo/synapse/internal/errors"
	"github.com/hrygo/synapse/plugin/ai"
)

func vec(v ...float32) ai.TextEmbedding {
	return ai.TextEmbedding{Vector: v, ModelVersion: "v1"}
}

func ids(matches []Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.NodeID
	}
	return out
}

func TestLocalIndex_UpsertRemove(t *testing.T) {
	idx := NewLocalIndex("")

	require.NoError(t, idx.Upsert("a", vec(1, 0)))
	require.NoError(t, idx.Upsert("b", vec(0, 1)))
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, "v1", idx.Version())
	assert.True(t, idx.Contains("a"))

	require.NoError(t, idx.Upsert("a", vec(1, 1)))
	assert.Equal(t, 2, idx.Len())
	got, ok := idx.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 1}, got.Embedding.Vector)

	assert.True(t, idx.Remove("a"))
	assert.False(t, idx.Remove("a"))
	assert.False(t, idx.Contains("a"))
	assert.Equal(t, 1, idx.Len())

	idx.Reset()
	assert.Equal(t, 0, idx.Len())
}

func TestLocalIndex_UpsertCopiesVector(t *testing.T) {
	idx := NewLocalIndex("v1")
	e := vec(1, 0)
	require.NoError(t, idx.Upsert("a", e))
	e.Vector[0] = 42

	got, _ := idx.Get("a")
	assert.Equal(t, float32(1), got.Embedding.Vector[0])
}

func TestLocalIndex_InvalidUpsert(t *testing.T) {
	idx := NewLocalIndex("v1")
	assert.True(t, aierrors.IsCode(idx.Upsert("", vec(1)), aierrors.ErrCodeInvalidArgument))
	assert.True(t, aierrors.IsCode(idx.Upsert("a", ai.TextEmbedding{ModelVersion: "v1"}), aierrors.ErrCodeInvalidArgument))
}

func TestLocalIndex_VersionMismatch(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("a", vec(1, 0)))

	err := idx.Upsert("b", ai.TextEmbedding{Vector: []float32{1, 0}, ModelVersion: "v2"})
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeVersionMismatch))

	_, err = idx.Search(ai.TextEmbedding{Vector: []float32{1, 0}, ModelVersion: "v2"}, 5)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeVersionMismatch))

	_, err = idx.Search(vec(1, 0, 0), 5)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeVersionMismatch))
}

func TestLocalIndex_ResetForgetsDimension(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("a", vec(1, 0)))
	assert.True(t, aierrors.IsCode(idx.Upsert("b", vec(1, 0, 0)), aierrors.ErrCodeVersionMismatch))

	idx.Reset()
	require.NoError(t, idx.Upsert("b", vec(1, 0, 0)))
	assert.True(t, aierrors.IsCode(idx.Upsert("c", ai.TextEmbedding{Vector: []float32{1, 0, 0}, ModelVersion: "v2"}), aierrors.ErrCodeVersionMismatch))
}

func TestLocalIndex_Search(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("far", vec(0, 1)))
	require.NoError(t, idx.Upsert("near", vec(1, 0.1)))
	require.NoError(t, idx.Upsert("mid", vec(1, 1)))

	results, err := idx.Search(vec(1, 0), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "mid", "far"}, ids(results))
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
	}

	top, err := idx.Search(vec(1, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, ids(top))

	none, err := idx.Search(vec(1, 0), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLocalIndex_SearchTieBreaksByRecency(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("old", vec(1, 0)))
	require.NoError(t, idx.Upsert("new", vec(2, 0)))

	results, err := idx.Search(vec(1, 0), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, ids(results))

	// Re-embedding makes "old" the most recent.
	require.NoError(t, idx.Upsert("old", vec(3, 0)))
	results, err = idx.Search(vec(1, 0), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids(results))
}

func TestLocalIndex_SearchEmpty(t *testing.T) {
	idx := NewLocalIndex("")
	results, err := idx.Search(vec(1, 0), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalIndex_FindSimilarExcludesSelf(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("a", vec(1, 0)))
	require.NoError(t, idx.Upsert("a-twin", vec(1, 0)))
	require.NoError(t, idx.Upsert("b", vec(0.5, 0.5)))
	require.NoError(t, idx.Upsert("c", vec(0, 1)))

	for k := 0; k <= 5; k++ {
		results, err := idx.FindSimilar("a", k)
		require.NoError(t, err)
		assert.NotContains(t, ids(results), "a", "k=%d", k)
		assert.LessOrEqual(t, len(results), k)
	}

	results, err := idx.FindSimilar("a", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-twin", "b"}, ids(results))

	_, err = idx.FindSimilar("missing", 3)
	assert.ErrorIs(t, err, ErrNotIndexed)
}

func TestLocalIndex_Cluster(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("A", vec(1, 0, 0, 0, 0)))
	require.NoError(t, idx.Upsert("C", vec(0, 0, 1, 0, 0)))
	require.NoError(t, idx.Upsert("B", vec(0.9, 0.1, 0, 0, 0)))
	require.NoError(t, idx.Upsert("D", vec(0, 0, 0, 1, 0)))
	require.NoError(t, idx.Upsert("E", vec(0, 0, 0, 0, 1)))

	clusters := idx.Cluster(0.7)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"A", "B"}, clusters[0])
}

func TestLocalIndex_ClusterIsOrderDependent(t *testing.T) {
	// X is similar to both seeds; it joins whichever seed comes first in index order.
	x := vec(1, 1)
	p := vec(1, 0.2)
	q := vec(0.2, 1)

	first := NewLocalIndex("v1")
	require.NoError(t, first.Upsert("P", p))
	require.NoError(t, first.Upsert("X", x))
	require.NoError(t, first.Upsert("Q", q))
	assert.Equal(t, [][]string{{"P", "X"}}, first.Cluster(0.75))

	second := NewLocalIndex("v1")
	require.NoError(t, second.Upsert("Q", q))
	require.NoError(t, second.Upsert("X", x))
	require.NoError(t, second.Upsert("P", p))
	assert.Equal(t, [][]string{{"Q", "X"}}, second.Cluster(0.75))
}

func TestLocalIndex_ClusterAfterRemove(t *testing.T) {
	idx := NewLocalIndex("v1")
	require.NoError(t, idx.Upsert("A", vec(1, 0)))
	require.NoError(t, idx.Upsert("B", vec(1, 0.05)))
	idx.Remove("B")
	assert.Empty(t, idx.Cluster(0.5))
}

func TestLocalIndex_ConcurrentAccess(t *testing.T) {
	idx := NewLocalIndex("v1")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("n%d-%d", w, i%10)
				assert.NoError(t, idx.Upsert(id, vec(float32(i), 1)))
				if i%7 == 0 {
					idx.Remove(id)
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				results, err := idx.Search(vec(1, 1), 5)
				assert.NoError(t, err)
				for _, r := range results {
					assert.LessOrEqual(t, r.Similarity, 1.0)
				}
				_ = idx.Cluster(0.9)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, idx.Len(), 40)
}
