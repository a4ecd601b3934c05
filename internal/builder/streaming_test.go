package builder

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecindex/internal/diskindex"
	"github.com/vecindex/internal/index"
	"github.com/vecindex/internal/testutil"
	"github.com/vecindex/pkg/errors"
)

func testParams() Params {
	return Params{
		Metric:          index.MetricL2,
		MaxDegree:       16,
		BuildComplexity: 50,
		Alpha:           1.2,
	}
}

func TestSampleSize(t *testing.T) {
	// Explicit value wins, clamped to N.
	assert.Equal(t, 50, sampleSize(50, 1000))
	assert.Equal(t, 200, sampleSize(500, 200))
	// Auto: sqrt(N) clamped to [1000, N].
	assert.Equal(t, 300, sampleSize(0, 300))
	assert.Equal(t, 1000, sampleSize(0, 100000))
	assert.Equal(t, 2000, sampleSize(0, 4000000))
}

func TestStreamingBuildAllInPilot(t *testing.T) {
	// N below the 1000 floor: every vector lands in the pilot graph.
	dir := t.TempDir()
	vectors := testutil.RandomVectors(71, 200, 8)
	input := testutil.WriteCorpusFile(t, dir, vectors)
	output := dir + "/out.diskann"

	result, err := Build(input, output, testParams(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), result.NumVectors)
	assert.Equal(t, uint32(8), result.Dimension)
	assert.Equal(t, uint32(200), result.SampleSize)

	disk, err := diskindex.Open(output, 0, 1.2)
	require.NoError(t, err)
	defer disk.Close()
	assert.Equal(t, 200, disk.Count())

	// The pilot is a full Vamana graph: exact self queries resolve.
	for _, i := range []int{0, 17, 100, 199} {
		results, err := disk.Search(vectors[i], 1, 0)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, uint32(i), results[0].ID)
		assert.Equal(t, float32(0), results[0].Distance)
	}
}

func TestStreamingBuildWithStreamPhase(t *testing.T) {
	dir := t.TempDir()
	vectors := testutil.RandomVectors(73, 400, 8)
	input := testutil.WriteCorpusFile(t, dir, vectors)
	output := dir + "/out.diskann"

	params := testParams()
	params.SampleSize = 100

	result, err := Build(input, output, params, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(400), result.NumVectors)
	assert.Equal(t, uint32(100), result.SampleSize)

	disk, err := diskindex.Open(output, 0, 1.2)
	require.NoError(t, err)
	defer disk.Close()

	assert.Equal(t, 400, disk.Count())
	assert.Equal(t, 8, disk.Dimension())
	assert.Equal(t, 16, disk.MaxDegree())
	require.NotEmpty(t, disk.EntryPoints())

	// Vectors are copied through byte-for-byte.
	for _, i := range []int{0, 99, 100, 399} {
		got, err := disk.GetVector(uint32(i))
		require.NoError(t, err)
		assert.Equal(t, vectors[i], got, "vector %d", i)
	}

	// Adjacency rows respect the degree bound and reference valid ids.
	var buf []uint32
	for id := 0; id < 400; id++ {
		buf = disk.NeighborsAt(uint32(id), buf[:0])
		assert.LessOrEqual(t, len(buf), 16, "row %d", id)
		for _, m := range buf {
			assert.Less(t, int(m), 400, "row %d points at absent id %d", id, m)
		}
	}

	// Pilot vectors resolve exactly; with a generous beam the top-1
	// recall over the whole file stays high.
	for _, i := range []int{0, 42, 99} {
		results, err := disk.Search(vectors[i], 1, 0)
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, uint32(i), results[0].ID, "pilot query %d", i)
	}

	hits := 0
	queries := []int{100, 150, 200, 250, 300, 350, 399}
	for _, i := range queries {
		results, err := disk.Search(vectors[i], 1, 400)
		require.NoError(t, err)
		if len(results) > 0 && results[0].ID == uint32(i) {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, len(queries)*7/10,
		"streaming top-1 self recall too low: %d/%d", hits, len(queries))
}

func TestStreamingBuildRecallAgainstBruteForce(t *testing.T) {
	dir := t.TempDir()
	vectors := testutil.RandomVectors(79, 500, 16)
	input := testutil.WriteCorpusFile(t, dir, vectors)
	output := dir + "/out.diskann"

	params := testParams()
	params.MaxDegree = 32
	params.BuildComplexity = 64

	_, err := Build(input, output, params, nil)
	require.NoError(t, err)

	disk, err := diskindex.Open(output, 0, 1.2)
	require.NoError(t, err)
	defer disk.Close()

	// Sampled queries: top-1 against brute force with a wide beam.
	hits := 0
	for q := 0; q < 50; q++ {
		query := vectors[q*10]
		exact := testutil.BruteForceKNN(index.MetricL2, vectors, query, 1)
		got, err := disk.Search(query, 1, 500)
		require.NoError(t, err)
		if len(got) > 0 && got[0].ID == exact[0].ID {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 45, "top-1 recall %d/50 below 0.9", hits)
}

func TestStreamingBuildRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Build(dir+"/missing.bin", dir+"/out.diskann", testParams(), nil)
		require.Error(t, err)
		assert.Equal(t, errors.CodeIO, errors.GetErrorCode(err))
	})

	t.Run("ZeroVectors", func(t *testing.T) {
		path := dir + "/zero.bin"
		writeRawCorpusHeader(t, path, 0, 8)
		_, err := Build(path, dir+"/out.diskann", testParams(), nil)
		require.Error(t, err)
		assert.Equal(t, errors.CodeMalformedInput, errors.GetErrorCode(err))
	})

	t.Run("ZeroDimension", func(t *testing.T) {
		path := dir + "/zerodim.bin"
		writeRawCorpusHeader(t, path, 5, 0)
		_, err := Build(path, dir+"/out.diskann", testParams(), nil)
		require.Error(t, err)
		assert.Equal(t, errors.CodeMalformedInput, errors.GetErrorCode(err))
	})

	t.Run("TruncatedBody", func(t *testing.T) {
		path := dir + "/trunc.bin"
		writeRawCorpusHeader(t, path, 100, 8)
		_, err := Build(path, dir+"/out.diskann", testParams(), nil)
		require.Error(t, err)
		assert.Equal(t, errors.CodeMalformedInput, errors.GetErrorCode(err))
	})
}

func writeRawCorpusHeader(t *testing.T, path string, n, dim uint32) {
	t.Helper()
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:4], n)
	binary.LittleEndian.PutUint32(hdr[4:8], dim)
	require.NoError(t, os.WriteFile(path, hdr[:], 0644))
}

func TestInjectBackEdges(t *testing.T) {
	// Stream node 0 (global id 2) targets sample node 1 with room left.
	sampleAdj := [][]uint32{{1}, {0}}
	streamAdj := [][]uint32{{1}}
	injectBackEdges(sampleAdj, streamAdj, 2, 4)
	assert.Equal(t, []uint32{0, 2}, sampleAdj[1])

	// Full target row: slot g mod R is overwritten.
	sampleAdj = [][]uint32{{9, 9, 9, 9}, {0}}
	streamAdj = [][]uint32{{0}}
	injectBackEdges(sampleAdj, streamAdj, 2, 4)
	g := uint32(2)
	assert.Equal(t, g, sampleAdj[0][int(g)%4])
}
