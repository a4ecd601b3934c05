package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecindex/internal/testutil"
	"github.com/vecindex/pkg/errors"
)

func newManager() *Manager {
	return New(nil, nil)
}

func TestManagerCreateDestroyLifecycle(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	info, err := m.CreateIndex(ctx, "x", 4, "l2", 16, 50, 1.2)
	require.NoError(t, err)
	assert.Equal(t, "x", info.Name)
	assert.Equal(t, 4, info.Dimension)
	assert.Equal(t, "L2", info.Metric)
	assert.Equal(t, 16, info.MaxDegree)
	assert.Equal(t, 50, info.BuildComplexity)
	assert.False(t, info.ReadOnly)
	assert.True(t, m.Exists("x"))

	// Duplicate create collides; destroy then create succeeds.
	_, err = m.CreateIndex(ctx, "x", 4, "l2", 16, 50, 1.2)
	require.Error(t, err)
	assert.Equal(t, errors.CodeAlreadyExists, errors.GetErrorCode(err))

	require.NoError(t, m.DestroyIndex(ctx, "x"))
	assert.False(t, m.Exists("x"))
	_, err = m.CreateIndex(ctx, "x", 4, "l2", 16, 50, 1.2)
	require.NoError(t, err)

	err = m.DestroyIndex(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetErrorCode(err))
}

func TestManagerCreateRejectsBadArguments(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.CreateIndex(ctx, "bad-metric", 4, "cosine", 16, 50, 1.2)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidArgument, errors.GetErrorCode(err))

	_, err = m.CreateIndex(ctx, "bad-dim", 0, "l2", 16, 50, 1.2)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidArgument, errors.GetErrorCode(err))
}

func TestManagerAddSearch(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.CreateIndex(ctx, "vec", 4, "l2", 16, 50, 1.2)
	require.NoError(t, err)

	for i, v := range [][]float32{
		{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1},
	} {
		label, err := m.Add(ctx, "vec", v)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), label)
	}

	results, err := m.Search(ctx, "vec", []float32{1, 0, 0, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(0), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, float32(2), results[1].Distance)

	_, err = m.Search(ctx, "ghost", []float32{1, 0, 0, 0}, 2, 0)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetErrorCode(err))
}

func TestManagerSaveLoadRoundTrip(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	dir := t.TempDir()

	_, err := m.CreateIndex(ctx, "persist", 8, "l2", 16, 50, 1.2)
	require.NoError(t, err)

	vectors := testutil.RandomVectors(83, 100, 8)
	labels, err := m.AddBatch(ctx, "persist", vectors)
	require.NoError(t, err)
	require.Len(t, labels, 100)

	path := filepath.Join(dir, "persist.diskann")
	require.NoError(t, m.Save(ctx, "persist", path))

	require.NoError(t, m.Load(ctx, "persist2", path, 0))
	info, err := m.Info(ctx, "persist2")
	require.NoError(t, err)
	assert.True(t, info.ReadOnly)
	assert.Equal(t, 100, info.Count)

	// Every original vector resolves to its own label at distance zero.
	for i, v := range vectors {
		results, err := m.Search(ctx, "persist2", v, 1, 0)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, labels[i], results[0].ID, "query %d", i)
		assert.Equal(t, float32(0), results[0].Distance)
	}

	// A loaded index rejects mutation and re-save.
	_, err = m.Add(ctx, "persist2", vectors[0])
	require.Error(t, err)
	assert.Equal(t, errors.CodeReadOnly, errors.GetErrorCode(err))

	err = m.Save(ctx, "persist2", filepath.Join(dir, "again.diskann"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeReadOnly, errors.GetErrorCode(err))

	// Loading over an existing name collides.
	err = m.Load(ctx, "persist", path, 0)
	require.Error(t, err)
	assert.Equal(t, errors.CodeAlreadyExists, errors.GetErrorCode(err))
}

func TestManagerListInfo(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.CreateIndex(ctx, "b", 4, "l2", 16, 50, 1.2)
	require.NoError(t, err)
	_, err = m.CreateIndex(ctx, "a", 2, "ip", 8, 30, 1.1)
	require.NoError(t, err)

	infos := m.List(ctx)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "IP", infos[0].Metric)
	assert.Equal(t, "b", infos[1].Name)

	_, err = m.Info(ctx, "ghost")
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetErrorCode(err))
}

func TestDetachedSerializeDeserializeIdentity(t *testing.T) {
	m := newManager()

	ix, err := m.NewDetached(8, "l2", 16, 50, 1.2)
	require.NoError(t, err)

	vectors := testutil.RandomVectors(89, 60, 8)
	for _, v := range vectors {
		_, err := ix.Add(v)
		require.NoError(t, err)
	}

	data, err := m.SerializeDetached(ix)
	require.NoError(t, err)

	// Alpha is supplied at deserialize; everything else is identity.
	restored, err := m.DeserializeDetached(data, 1.2)
	require.NoError(t, err)

	assert.Equal(t, ix.Dimension(), restored.Dimension())
	assert.Equal(t, ix.Metric(), restored.Metric())
	assert.Equal(t, ix.MaxDegree(), restored.MaxDegree())
	assert.Equal(t, ix.BuildComplexity(), restored.BuildComplexity())
	assert.Equal(t, ix.Count(), restored.Count())
	assert.Equal(t, ix.EntryPoints(), restored.EntryPoints())
	assert.Equal(t, ix.NextLabel(), restored.NextLabel())

	var a, b []uint32
	for id := 0; id < ix.Count(); id++ {
		want, err := ix.GetVector(uint32(id))
		require.NoError(t, err)
		got, err := restored.GetVector(uint32(id))
		require.NoError(t, err)
		assert.Equal(t, want, got, "vector %d", id)

		a = ix.NeighborsAt(uint32(id), a[:0])
		b = restored.NeighborsAt(uint32(id), b[:0])
		assert.Equal(t, a, b, "adjacency %d", id)
	}

	// The restored index stays writable.
	_, err = restored.Add(vectors[0])
	require.NoError(t, err)
}

func TestManagerCompactIndex(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	_, err := m.CreateIndex(ctx, "c", 8, "l2", 16, 50, 1.2)
	require.NoError(t, err)

	vectors := testutil.RandomVectors(97, 100, 8)
	_, err = m.AddBatch(ctx, "c", vectors)
	require.NoError(t, err)

	// Tombstones refer to three original labels; map them to vectors
	// first since batch insertion orders labels nondeterministically.
	inst, err := m.Registry().Get("c")
	require.NoError(t, err)
	dead := []uint32{5, 20, 77}

	deadVecs := make([][]float32, len(dead))
	for i, d := range dead {
		v, err := inst.GetVector(d)
		require.NoError(t, err)
		deadVecs[i] = v
	}

	labelMap, err := m.CompactIndex(ctx, "c", dead)
	require.NoError(t, err)
	assert.Len(t, labelMap, 97)

	info, err := m.Info(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 97, info.Count)

	// A tombstoned vector no longer matches at distance zero.
	for i, v := range deadVecs {
		results, err := m.Search(ctx, "c", v, 1, 0)
		require.NoError(t, err)
		if len(results) > 0 {
			assert.NotEqual(t, float32(0), results[0].Distance,
				"tombstoned vector %d still present", dead[i])
		}
	}
}

func TestManagerStreamingBuild(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	dir := t.TempDir()

	vectors := testutil.RandomVectors(101, 150, 8)
	input := testutil.WriteCorpusFile(t, dir, vectors)
	output := filepath.Join(dir, "built.diskann")

	result, err := m.StreamingBuild(ctx, input, output, "l2", 16, 50, 1.2, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(150), result.NumVectors)
	assert.Equal(t, uint32(8), result.Dimension)
	assert.Equal(t, uint32(150), result.SampleSize)

	require.NoError(t, m.Load(ctx, "built", output, 0))
	results, err := m.Search(ctx, "built", vectors[10], 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, uint32(10), results[0].ID)
}
